package quote

import (
	"fmt"

	"miniloan/internal/domain/emi"
	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type Limits struct {
	MinPrincipal decimal.Decimal
	MaxPrincipal decimal.Decimal
	MinTenure    int
	MaxTenure    int
}

var DefaultLimits = Limits{
	MinPrincipal: decimal.NewFromInt(1_000),
	MaxPrincipal: decimal.NewFromInt(50_000),
	MinTenure:    1,
	MaxTenure:    24,
}

var DefaultMonthlyIncome = decimal.NewFromInt(30_000)

func (l Limits) Validate(principal decimal.Decimal, tenureMonths int) error {
	if principal.LessThan(l.MinPrincipal) || principal.GreaterThan(l.MaxPrincipal) {
		return fmt.Errorf("%w: principal must be between %s and %s, got %s",
			apperrors.ErrInvalidInput, l.MinPrincipal, l.MaxPrincipal, principal)
	}
	if !principal.Equal(principal.Round(emi.CurrencyPlaces)) {
		return fmt.Errorf("%w: principal has more than %d decimal places", apperrors.ErrInvalidInput, emi.CurrencyPlaces)
	}
	if tenureMonths < l.MinTenure || tenureMonths > l.MaxTenure {
		return fmt.Errorf("%w: tenure must be between %d and %d months, got %d",
			apperrors.ErrInvalidInput, l.MinTenure, l.MaxTenure, tenureMonths)
	}
	return nil
}

type Request struct {
	Principal    decimal.Decimal
	TenureMonths int
	// MonthlyIncome selects the rate tier; nil falls back to the configured default.
	MonthlyIncome   *decimal.Decimal
	IncludeSchedule bool
}

type Quote struct {
	Principal         decimal.Decimal   `json:"principal"`
	TenureMonths      int               `json:"tenureMonths"`
	MonthlyIncome     decimal.Decimal   `json:"monthlyIncome"`
	AnnualRatePercent decimal.Decimal   `json:"annualRatePercent"`
	MonthlyEmi        decimal.Decimal   `json:"monthlyEmi"`
	TotalInterest     decimal.Decimal   `json:"totalInterest"`
	TotalPayment      decimal.Decimal   `json:"totalPayment"`
	Schedule          []emi.Installment `json:"-"`
}
