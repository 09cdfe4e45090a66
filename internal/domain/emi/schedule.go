package emi

import "github.com/shopspring/decimal"

type Installment struct {
	Month     int
	Payment   decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Balance   decimal.Decimal
}

// Schedule breaks the loan into monthly instalments. Interest for a month is
// charged on the opening balance. The final instalment clears whatever balance
// is left, so payments sum to TotalPayment and principal parts sum to principal.
func Schedule(principal, annualRatePercent decimal.Decimal, tenureMonths int) ([]Installment, error) {
	result, err := Compute(principal, annualRatePercent, tenureMonths)
	if err != nil {
		return nil, err
	}

	r := MonthlyRate(annualRatePercent)
	paidBeforeLast := result.MonthlyEmi.Mul(decimal.NewFromInt(int64(tenureMonths - 1)))
	balance := principal
	schedule := make([]Installment, 0, tenureMonths)

	for month := 1; month <= tenureMonths; month++ {
		payment := result.MonthlyEmi
		interest := round(balance.Mul(r))
		principalPart := payment.Sub(interest)

		if principalPart.GreaterThan(balance) {
			principalPart = balance
			interest = payment.Sub(principalPart)
		}

		if month == tenureMonths {
			payment = result.TotalPayment.Sub(paidBeforeLast)
			principalPart = balance
			interest = payment.Sub(principalPart)
		}

		balance = balance.Sub(principalPart)
		schedule = append(schedule, Installment{
			Month:     month,
			Payment:   payment,
			Principal: principalPart,
			Interest:  interest,
			Balance:   balance,
		})
	}

	return schedule, nil
}
