package emi

import (
	"math/big"
	"testing"

	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		principal    string
		rate         string
		tenure       int
		wantEmi      string
		wantTotal    string
		wantInterest string
	}{
		{"twelve percent over a year", "25000", "12", 12, "2221.22", "26654.64", "1654.64"},
		{"fifteen percent over a year", "10000", "15", 12, "902.58", "10830.96", "830.96"},
		{"eight percent over two years", "50000", "8", 24, "2261.36", "54272.64", "4272.64"},
		{"single month degenerates to principal plus one month of interest", "1000", "15", 1, "1012.50", "1012.50", "12.50"},
		{"interest free split", "12000", "0", 12, "1000.00", "12000.00", "0"},
		{"interest free split rounding down keeps principal", "1000", "0", 3, "333.33", "1000", "0"},
		{"exact half cent rounds up on a single month", "1205.50", "12", 1, "1217.56", "1217.56", "12.06"},
		{"exact half cent rounds up with a repeating monthly rate", "1301.40", "10", 2, "658.85", "1317.70", "16.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compute(d(tt.principal), d(tt.rate), tt.tenure)
			require.NoError(t, err)

			assert.True(t, d(tt.wantEmi).Equal(res.MonthlyEmi), "monthly emi: want %s got %s", tt.wantEmi, res.MonthlyEmi)
			assert.True(t, d(tt.wantTotal).Equal(res.TotalPayment), "total payment: want %s got %s", tt.wantTotal, res.TotalPayment)
			assert.True(t, d(tt.wantInterest).Equal(res.TotalInterest), "total interest: want %s got %s", tt.wantInterest, res.TotalInterest)
		})
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		tenure    int
	}{
		{"zero principal", "0", "12", 12},
		{"negative principal", "-100", "12", 12},
		{"zero tenure", "1000", "12", 0},
		{"negative tenure", "1000", "12", -3},
		{"negative rate", "1000", "-0.5", 12},
		{"principal too small to spread", "0.01", "0", 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(d(tt.principal), d(tt.rate), tt.tenure)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestComputeProperties(t *testing.T) {
	rates := []string{"0", "0.0000001", "8", "10", "12", "15", "36"}

	for principal := int64(1000); principal <= 50000; principal += 7000 {
		for tenure := 1; tenure <= 24; tenure++ {
			for _, rate := range rates {
				p := decimal.NewFromInt(principal)
				res, err := Compute(p, d(rate), tenure)
				require.NoError(t, err)

				assert.True(t, res.MonthlyEmi.IsPositive(), "emi must be positive for %d/%s/%d", principal, rate, tenure)
				assert.True(t, res.TotalPayment.GreaterThanOrEqual(p), "total must cover principal for %d/%s/%d", principal, rate, tenure)
				assert.False(t, res.TotalInterest.IsNegative())
				assert.True(t, res.TotalInterest.Equal(res.TotalPayment.Sub(p)))
				assert.LessOrEqual(t, res.MonthlyEmi.Exponent(), int32(0))
				assert.GreaterOrEqual(t, res.MonthlyEmi.Exponent(), int32(-CurrencyPlaces))

				again, err := Compute(p, d(rate), tenure)
				require.NoError(t, err)
				assert.Equal(t, res, again)
			}
		}
	}
}

// exactEmiCents is P*r*(1+r)^n / ((1+r)^n - 1) in rational arithmetic,
// rounded half-up to whole cents.
func exactEmiCents(principal, annualRate string, tenure int) *big.Int {
	p, _ := new(big.Rat).SetString(principal)
	a, _ := new(big.Rat).SetString(annualRate)
	r := new(big.Rat).Quo(a, big.NewRat(1200, 1))

	growth := big.NewRat(1, 1)
	base := new(big.Rat).Add(big.NewRat(1, 1), r)
	for i := 0; i < tenure; i++ {
		growth.Mul(growth, base)
	}

	emi := new(big.Rat).Mul(p, r)
	emi.Mul(emi, growth)
	emi.Quo(emi, new(big.Rat).Sub(growth, big.NewRat(1, 1)))

	cents := emi.Mul(emi, big.NewRat(100, 1))
	cents.Add(cents, big.NewRat(1, 2))
	return new(big.Int).Quo(cents.Num(), cents.Denom())
}

func TestComputeRoundsHalfUpExactly(t *testing.T) {
	rates := []string{"8", "10", "12", "15"}
	tenures := []int{1, 2, 3, 7, 12, 24}
	step := d("0.70")

	for p := d("1000"); p.LessThanOrEqual(d("1400")); p = p.Add(step) {
		for _, rate := range rates {
			for _, tenure := range tenures {
				res, err := Compute(p, d(rate), tenure)
				require.NoError(t, err)

				want := exactEmiCents(p.String(), rate, tenure)
				got := res.MonthlyEmi.Shift(CurrencyPlaces).BigInt()
				if got.Cmp(want) != 0 {
					t.Fatalf("%s at %s%% over %d months: want %s cents, got %s", p, rate, tenure, want, got)
				}
			}
		}
	}
}

func TestComputeZeroRateMatchesEvenSplit(t *testing.T) {
	for tenure := 1; tenure <= 24; tenure++ {
		p := d("25000")
		res, err := Compute(p, decimal.Zero, tenure)
		require.NoError(t, err)

		even := p.Div(decimal.NewFromInt(int64(tenure)))
		assert.True(t, res.MonthlyEmi.Sub(even).Abs().LessThanOrEqual(d("0.005")),
			"tenure %d: %s vs %s", tenure, res.MonthlyEmi, even)
	}
}

func TestComputeTinyRateIsStable(t *testing.T) {
	zero, err := Compute(d("24000"), decimal.Zero, 24)
	require.NoError(t, err)

	tiny, err := Compute(d("24000"), d("0.000000001"), 24)
	require.NoError(t, err)

	assert.True(t, zero.MonthlyEmi.Equal(tiny.MonthlyEmi), "zero %s tiny %s", zero.MonthlyEmi, tiny.MonthlyEmi)
}

func TestMonthlyRate(t *testing.T) {
	assert.True(t, d("0.01").Equal(MonthlyRate(d("12"))))
	assert.True(t, d("0.0125").Equal(MonthlyRate(d("15"))))
	assert.True(t, MonthlyRate(decimal.Zero).IsZero())
}
