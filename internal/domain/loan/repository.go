package loan

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	// GetLoanForUpdate locks the loan row until tx ends.
	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	// ListUserLoansForUpdate locks every loan of the user in id order.
	ListUserLoansForUpdate(ctx context.Context, tx pgx.Tx, userID int64) ([]*Loan, error)

	FindLoanByUserAndStatus(ctx context.Context, userID int64, status LoanStatus) (*Loan, error)

	ListLoansByUser(ctx context.Context, userID int64) ([]*Loan, error)

	ListLoansByStatus(ctx context.Context, status LoanStatus) ([]*Loan, error)

	ListPendingLoanIDsCreatedBefore(ctx context.Context, cutoff time.Time) ([]int64, error)

	UpdateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan) error

	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *Payment) (*Payment, error)

	ListPaymentsByLoanID(ctx context.Context, loanID int64) ([]*Payment, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
