package rate

import (
	"errors"
	"fmt"

	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// Tier applies AnnualRatePercent to incomes strictly below IncomeUpperBound.
// A nil bound marks the last, unbounded tier.
type Tier struct {
	IncomeUpperBound  *decimal.Decimal
	AnnualRatePercent decimal.Decimal
}

func bound(v int64) *decimal.Decimal {
	b := decimal.NewFromInt(v)
	return &b
}

var DefaultTiers = []Tier{
	{IncomeUpperBound: bound(20_000), AnnualRatePercent: decimal.NewFromFloat(15.0)},
	{IncomeUpperBound: bound(50_000), AnnualRatePercent: decimal.NewFromFloat(12.0)},
	{IncomeUpperBound: bound(100_000), AnnualRatePercent: decimal.NewFromFloat(10.0)},
	{IncomeUpperBound: nil, AnnualRatePercent: decimal.NewFromFloat(8.0)},
}

type Policy struct {
	tiers []Tier
}

var defaultPolicy = MustNewPolicy(DefaultTiers)

func NewPolicy(tiers []Tier) (*Policy, error) {
	if len(tiers) == 0 {
		return nil, errors.New("rate policy needs at least one tier")
	}

	var previous *decimal.Decimal
	for i, tier := range tiers {
		if tier.AnnualRatePercent.IsNegative() {
			return nil, fmt.Errorf("tier %d: rate must not be negative", i)
		}
		last := i == len(tiers)-1
		if tier.IncomeUpperBound == nil {
			if !last {
				return nil, fmt.Errorf("tier %d: only the last tier may be unbounded", i)
			}
			continue
		}
		if last {
			return nil, errors.New("last tier must be unbounded")
		}
		if previous != nil && !tier.IncomeUpperBound.GreaterThan(*previous) {
			return nil, fmt.Errorf("tier %d: bounds must be strictly ascending", i)
		}
		previous = tier.IncomeUpperBound
	}

	copied := make([]Tier, len(tiers))
	copy(copied, tiers)
	return &Policy{tiers: copied}, nil
}

func MustNewPolicy(tiers []Tier) *Policy {
	p, err := NewPolicy(tiers)
	if err != nil {
		panic(err)
	}
	return p
}

// Default returns the policy built from DefaultTiers.
func Default() *Policy {
	return defaultPolicy
}

// ForIncome returns the annual rate of the first tier whose bound exceeds the income.
func (p *Policy) ForIncome(monthlyIncome decimal.Decimal) (decimal.Decimal, error) {
	if monthlyIncome.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: monthly income must not be negative, got %s",
			apperrors.ErrInvalidInput, monthlyIncome.String())
	}
	for _, tier := range p.tiers {
		if tier.IncomeUpperBound == nil || monthlyIncome.LessThan(*tier.IncomeUpperBound) {
			return tier.AnnualRatePercent, nil
		}
	}
	// unreachable: NewPolicy guarantees an unbounded last tier
	return p.tiers[len(p.tiers)-1].AnnualRatePercent, nil
}

func (p *Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

func ForIncome(monthlyIncome decimal.Decimal) (decimal.Decimal, error) {
	return defaultPolicy.ForIncome(monthlyIncome)
}
