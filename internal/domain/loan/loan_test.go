package loan

import (
	"testing"
	"time"

	"miniloan/internal/domain/quote"
	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func approvedLoan(total, emiAmount string) *Loan {
	return &Loan{
		ID:              1,
		UserID:          10,
		Amount:          dec(total),
		TenureMonths:    12,
		Emi:             dec(emiAmount),
		TotalPayable:    dec(total),
		PaidAmount:      decimal.Zero,
		RemainingAmount: dec(total),
		Status:          StatusApproved,
	}
}

func assertConserved(t *testing.T, l *Loan) {
	t.Helper()
	assert.True(t, l.PaidAmount.Add(l.RemainingAmount).Equal(l.TotalPayable),
		"paid %s + remaining %s != total %s", l.PaidAmount, l.RemainingAmount, l.TotalPayable)
	assert.False(t, l.RemainingAmount.IsNegative())
}

func TestNewLoan(t *testing.T) {
	q := &quote.Quote{
		Principal:         dec("10000"),
		TenureMonths:      12,
		AnnualRatePercent: dec("15"),
		MonthlyEmi:        dec("902.58"),
		TotalPayment:      dec("10830.96"),
		TotalInterest:     dec("830.96"),
	}

	l, err := NewLoan(10, q, now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, l.Status)
	assert.True(t, dec("902.58").Equal(l.Emi))
	assert.True(t, dec("10830.96").Equal(l.RemainingAmount))
	assert.True(t, l.PaidAmount.IsZero())
	assert.Nil(t, l.StartDate)
	assertConserved(t, l)

	_, err = NewLoan(0, q, now)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = NewLoan(10, nil, now)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTransitions(t *testing.T) {
	statuses := []LoanStatus{StatusPending, StatusApproved, StatusRejected, StatusCompleted}

	for _, from := range statuses {
		t.Run("approve from "+string(from), func(t *testing.T) {
			l := &Loan{Status: from}
			err := l.Approve(now)
			if from == StatusPending {
				require.NoError(t, err)
				assert.Equal(t, StatusApproved, l.Status)
				require.NotNil(t, l.StartDate)
				assert.True(t, now.Equal(*l.StartDate))
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
			assert.Equal(t, from, l.Status)
		})

		t.Run("reject from "+string(from), func(t *testing.T) {
			l := &Loan{Status: from}
			err := l.Reject(now)
			if from == StatusPending {
				require.NoError(t, err)
				assert.Equal(t, StatusRejected, l.Status)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
			assert.Equal(t, from, l.Status)
		})
	}

	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, LoanStatus("CLOSED").Valid())
}

func TestPayTwoInstalmentsCompletesLoan(t *testing.T) {
	l := approvedLoan("10000", "1000")

	p, err := l.Pay(dec("4000"), PaymentTypeCustom, now)
	require.NoError(t, err)
	assert.True(t, dec("6000").Equal(l.RemainingAmount))
	assert.True(t, dec("6000").Equal(p.RemainingAfter))
	assert.Equal(t, StatusApproved, l.Status)
	assertConserved(t, l)

	later := now.Add(24 * time.Hour)
	p, err = l.Pay(dec("6000"), PaymentTypeCustom, later)
	require.NoError(t, err)
	assert.True(t, l.RemainingAmount.IsZero())
	assert.Equal(t, StatusCompleted, l.Status)
	require.NotNil(t, l.EndDate)
	assert.True(t, later.Equal(*l.EndDate))
	assert.Equal(t, PaymentTypeCustom, p.Type)
	assertConserved(t, l)

	_, err = l.Pay(dec("1"), PaymentTypeCustom, later)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestPayRules(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		kind    PaymentType
		wantErr error
	}{
		{"emi exactly", "902.58", PaymentTypeEMI, nil},
		{"emi above instalment", "1500", PaymentTypeEMI, nil},
		{"emi below instalment", "500", PaymentTypeEMI, apperrors.ErrInsufficientBalance},
		{"custom below instalment", "0.01", PaymentTypeCustom, nil},
		{"full with the exact balance", "10830.96", PaymentTypeFull, nil},
		{"full with less than the balance", "10000", PaymentTypeFull, apperrors.ErrInsufficientBalance},
		{"overpayment", "10830.97", PaymentTypeCustom, apperrors.ErrInsufficientBalance},
		{"zero", "0", PaymentTypeCustom, apperrors.ErrInvalidInput},
		{"negative", "-5", PaymentTypeEMI, apperrors.ErrInvalidInput},
		{"sub-cent", "100.005", PaymentTypeCustom, apperrors.ErrInvalidInput},
		{"unknown type", "100", PaymentType("BONUS"), apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := approvedLoan("10830.96", "902.58")
			before := *l

			_, err := l.Pay(dec(tt.amount), tt.kind, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, *l, "loan must be unchanged after a refused payment")
				return
			}
			require.NoError(t, err)
			assertConserved(t, l)
		})
	}
}

func TestPayEmiMayClearSmallerRemainder(t *testing.T) {
	l := approvedLoan("1000", "333.33")
	l.PaidAmount = dec("999.00")
	l.RemainingAmount = dec("1.00")

	_, err := l.Pay(dec("1.00"), PaymentTypeEMI, now)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, l.Status)
	assertConserved(t, l)
}

func TestPayRequiresApprovedLoan(t *testing.T) {
	for _, status := range []LoanStatus{StatusPending, StatusRejected, StatusCompleted} {
		l := approvedLoan("1000", "100")
		l.Status = status
		_, err := l.Pay(dec("100"), PaymentTypeEMI, now)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "status %s", status)
	}
}

func TestPaidAmountNeverDecreases(t *testing.T) {
	l := approvedLoan("5000", "450")
	previous := l.PaidAmount

	for _, amount := range []string{"450", "1000", "0", "9999", "450.555", "3550"} {
		_, _ = l.Pay(dec(amount), PaymentTypeEMI, now)
		assert.True(t, l.PaidAmount.GreaterThanOrEqual(previous))
		assertConserved(t, l)
		previous = l.PaidAmount
	}
	assert.Equal(t, StatusCompleted, l.Status)
}
