package loan

import (
	"fmt"
	"time"

	"miniloan/internal/domain/emi"
	"miniloan/internal/domain/quote"
	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusPending   LoanStatus = "PENDING"
	StatusApproved  LoanStatus = "APPROVED"
	StatusRejected  LoanStatus = "REJECTED"
	StatusCompleted LoanStatus = "COMPLETED"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

func (s LoanStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Loan is a single application and, once approved, its repayment state.
// Emi and TotalPayable are fixed when the loan is created. PaidAmount plus
// RemainingAmount always equals TotalPayable.
type Loan struct {
	ID              int64
	UserID          int64
	Amount          decimal.Decimal
	TenureMonths    int
	InterestRate    decimal.Decimal
	Emi             decimal.Decimal
	TotalPayable    decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          LoanStatus
	StartDate       *time.Time
	EndDate         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewLoan(userID int64, q *quote.Quote, now time.Time) (*Loan, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", apperrors.ErrInvalidInput)
	}
	if q == nil || !q.MonthlyEmi.IsPositive() || q.TotalPayment.LessThan(q.Principal) {
		return nil, fmt.Errorf("%w: loan needs a valid quote", apperrors.ErrInvalidInput)
	}

	return &Loan{
		UserID:          userID,
		Amount:          q.Principal,
		TenureMonths:    q.TenureMonths,
		InterestRate:    q.AnnualRatePercent,
		Emi:             q.MonthlyEmi,
		TotalPayable:    q.TotalPayment,
		PaidAmount:      decimal.Zero,
		RemainingAmount: q.TotalPayment,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (l *Loan) Approve(now time.Time) error {
	if l.Status != StatusPending {
		return fmt.Errorf("%w: cannot approve loan %d in status %s", apperrors.ErrInvalidTransition, l.ID, l.Status)
	}
	l.Status = StatusApproved
	l.StartDate = &now
	l.UpdatedAt = now
	return nil
}

func (l *Loan) Reject(now time.Time) error {
	if l.Status != StatusPending {
		return fmt.Errorf("%w: cannot reject loan %d in status %s", apperrors.ErrInvalidTransition, l.ID, l.Status)
	}
	l.Status = StatusRejected
	l.UpdatedAt = now
	return nil
}

// Pay applies a repayment and returns the payment record to persist. The loan
// is left untouched when an error is returned.
func (l *Loan) Pay(amount decimal.Decimal, kind PaymentType, now time.Time) (*Payment, error) {
	if l.Status != StatusApproved {
		return nil, fmt.Errorf("%w: loan %d is %s, payments need an approved loan", apperrors.ErrInvalidTransition, l.ID, l.Status)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown payment type %q", apperrors.ErrInvalidInput, kind)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive, got %s", apperrors.ErrInvalidInput, amount)
	}
	if !amount.Equal(amount.Round(emi.CurrencyPlaces)) {
		return nil, fmt.Errorf("%w: payment amount has more than %d decimal places", apperrors.ErrInvalidInput, emi.CurrencyPlaces)
	}
	if amount.GreaterThan(l.RemainingAmount) {
		return nil, fmt.Errorf("%w: payment %s exceeds remaining balance %s", apperrors.ErrInsufficientBalance, amount, l.RemainingAmount)
	}

	clears := amount.Equal(l.RemainingAmount)
	switch kind {
	case PaymentTypeEMI:
		if amount.LessThan(l.Emi) && !clears {
			return nil, fmt.Errorf("%w: instalment payment %s is below the monthly EMI %s", apperrors.ErrInsufficientBalance, amount, l.Emi)
		}
	case PaymentTypeFull:
		if !clears {
			return nil, fmt.Errorf("%w: full payment must equal the remaining balance %s", apperrors.ErrInsufficientBalance, l.RemainingAmount)
		}
	}

	l.PaidAmount = l.PaidAmount.Add(amount)
	l.RemainingAmount = l.TotalPayable.Sub(l.PaidAmount)
	l.UpdatedAt = now
	if l.RemainingAmount.IsZero() {
		l.Status = StatusCompleted
		l.EndDate = &now
	}

	return &Payment{
		LoanID:         l.ID,
		UserID:         l.UserID,
		Amount:         amount,
		Type:           kind,
		RemainingAfter: l.RemainingAmount,
		PaidAt:         now,
	}, nil
}
