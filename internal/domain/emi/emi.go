// Package emi computes equated monthly instalments with the reducing-balance
// method. Money is carried as decimal; instalments are rounded half-up to
// CurrencyPlaces once, after the formula has been evaluated.
package emi

import (
	"fmt"

	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

const CurrencyPlaces = 2

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
	two           = decimal.NewFromInt(2)

	// percentMonths turns an annual percentage a into the monthly rate a/1200.
	percentMonths = decimal.NewFromInt(1200)
)

type Result struct {
	MonthlyEmi    decimal.Decimal
	TotalInterest decimal.Decimal
	TotalPayment  decimal.Decimal
}

// MonthlyRate converts an annual percentage rate into a monthly decimal rate.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(monthsPerYear)
}

// Compute returns the fixed monthly instalment and the derived totals.
//
// TotalPayment is MonthlyEmi * tenureMonths but never less than the principal:
// when rounding pulls the instalment down (1000 over 3 months at 0%), the last
// instalment absorbs the difference and TotalInterest stays at zero.
func Compute(principal, annualRatePercent decimal.Decimal, tenureMonths int) (Result, error) {
	if err := validate(principal, annualRatePercent, tenureMonths); err != nil {
		return Result{}, err
	}

	monthlyEmi := installment(principal, annualRatePercent, tenureMonths)
	if !monthlyEmi.IsPositive() {
		return Result{}, fmt.Errorf("%w: principal %s is too small to spread over %d months",
			apperrors.ErrInvalidInput, principal.String(), tenureMonths)
	}

	totalPayment := monthlyEmi.Mul(decimal.NewFromInt(int64(tenureMonths)))
	if totalPayment.LessThan(principal) {
		totalPayment = principal
	}

	return Result{
		MonthlyEmi:    monthlyEmi,
		TotalPayment:  totalPayment,
		TotalInterest: totalPayment.Sub(principal),
	}, nil
}

func validate(principal, annualRatePercent decimal.Decimal, tenureMonths int) error {
	if !principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", apperrors.ErrInvalidInput, principal.String())
	}
	if tenureMonths <= 0 {
		return fmt.Errorf("%w: tenure must be a positive number of months, got %d", apperrors.ErrInvalidInput, tenureMonths)
	}
	if annualRatePercent.IsNegative() {
		return fmt.Errorf("%w: annual rate must not be negative, got %s", apperrors.ErrInvalidInput, annualRatePercent.String())
	}
	return nil
}

// installment evaluates P*r*(1+r)^n / ((1+r)^n - 1) rounded half-up to cents.
// With r = a/1200 it is evaluated as P*a*(1200+a)^n / (1200*((1200+a)^n - 1200^n)),
// a quotient of two exact decimals.
func installment(principal, annualRatePercent decimal.Decimal, tenureMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(tenureMonths))
	if annualRatePercent.IsZero() {
		return roundHalfUp(principal, n)
	}

	growth := percentMonths.Add(annualRatePercent).Pow(n)
	num := principal.Mul(annualRatePercent).Mul(growth)
	den := percentMonths.Mul(growth.Sub(percentMonths.Pow(n)))
	return roundHalfUp(num, den)
}

// roundHalfUp returns num/den rounded half-up to CurrencyPlaces. Both operands
// are positive, so floor((2*num*10^p + den) / (2*den)) is the rounded value in cents.
func roundHalfUp(num, den decimal.Decimal) decimal.Decimal {
	cents, _ := num.Shift(CurrencyPlaces).Mul(two).Add(den).QuoRem(den.Mul(two), 0)
	return cents.Shift(-CurrencyPlaces)
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}
