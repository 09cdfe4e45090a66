package loan

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

type TxMock struct {
	pgx.Tx
}

var tx pgx.Tx = &TxMock{}

func loanOrNil(v any) *Loan {
	if v == nil {
		return nil
	}
	return v.(*Loan)
}

func (m *MockRepository) CreateLoan(ctx context.Context, loan *Loan) (*Loan, error) {
	args := m.Called(ctx, loan)
	if rf, ok := args.Get(0).(func(*Loan) *Loan); ok {
		return rf(loan), args.Error(1)
	}
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	args := m.Called(ctx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	args := m.Called(ctx, tx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepository) ListUserLoansForUpdate(ctx context.Context, tx pgx.Tx, userID int64) ([]*Loan, error) {
	args := m.Called(ctx, tx, userID)
	loans, _ := args.Get(0).([]*Loan)
	return loans, args.Error(1)
}

func (m *MockRepository) FindLoanByUserAndStatus(ctx context.Context, userID int64, status LoanStatus) (*Loan, error) {
	args := m.Called(ctx, userID, status)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockRepository) ListLoansByUser(ctx context.Context, userID int64) ([]*Loan, error) {
	args := m.Called(ctx, userID)
	loans, _ := args.Get(0).([]*Loan)
	return loans, args.Error(1)
}

func (m *MockRepository) ListLoansByStatus(ctx context.Context, status LoanStatus) ([]*Loan, error) {
	args := m.Called(ctx, status)
	loans, _ := args.Get(0).([]*Loan)
	return loans, args.Error(1)
}

func (m *MockRepository) ListPendingLoanIDsCreatedBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	args := m.Called(ctx, cutoff)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *MockRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan) error {
	args := m.Called(ctx, tx, loan)
	return args.Error(0)
}

func (m *MockRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *Payment) (*Payment, error) {
	args := m.Called(ctx, tx, payment)
	if rf, ok := args.Get(0).(func(*Payment) *Payment); ok {
		return rf(payment), args.Error(1)
	}
	p, _ := args.Get(0).(*Payment)
	return p, args.Error(1)
}

func (m *MockRepository) ListPaymentsByLoanID(ctx context.Context, loanID int64) ([]*Payment, error) {
	args := m.Called(ctx, loanID)
	payments, _ := args.Get(0).([]*Payment)
	return payments, args.Error(1)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	t, _ := args.Get(0).(pgx.Tx)
	return t, args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
