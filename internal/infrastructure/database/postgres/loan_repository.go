package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"miniloan/internal/domain/loan"
	"miniloan/internal/infrastructure/monitoring"
	"miniloan/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `id, user_id, amount, tenure_months, interest_rate, emi, total_payable, paid_amount, remaining_amount, status, start_date, end_date, created_at, updated_at`

const (
	insertLoanSQL = `
        INSERT INTO loans (user_id, amount, tenure_months, interest_rate, emi, total_payable, paid_amount, remaining_amount, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
        RETURNING ` + loanColumns

	selectLoanByIDSQL = `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	selectLoanForUpdateSQL = `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	selectUserLoansForUpdateSQL = `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 ORDER BY id ASC FOR UPDATE`

	selectLoanByUserAndStatusSQL = `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT 1`

	selectLoansByUserSQL = `SELECT ` + loanColumns + ` FROM loans WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	selectLoansByStatusSQL = `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY created_at ASC, id ASC`

	selectStalePendingIDsSQL = `SELECT id FROM loans WHERE status = $1 AND created_at < $2 ORDER BY id ASC`

	updateLoanSQL = `
        UPDATE loans
        SET paid_amount = $1, remaining_amount = $2, status = $3, start_date = $4, end_date = $5, updated_at = $6
        WHERE id = $7`

	insertPaymentSQL = `
        INSERT INTO payments (loan_id, user_id, amount, payment_type, reference, remaining_after, paid_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`

	selectPaymentsByLoanSQL = `
        SELECT id, loan_id, user_id, amount, payment_type, reference, remaining_after, paid_at
        FROM payments
        WHERE loan_id = $1
        ORDER BY paid_at ASC, id ASC`
)

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.UserID, &l.Amount, &l.TenureMonths, &l.InterestRate,
		&l.Emi, &l.TotalPayable, &l.PaidAmount, &l.RemainingAmount,
		&l.Status, &l.StartDate, &l.EndDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLoans(rows pgx.Rows) ([]*loan.Loan, error) {
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (created *loan.Loan, err error) {
	defer monitoring.ObserveDBQuery("CreateLoan", time.Now(), &err)

	created, err = scanLoan(r.db.QueryRow(ctx, insertLoanSQL,
		newLoan.UserID, newLoan.Amount, newLoan.TenureMonths, newLoan.InterestRate,
		newLoan.Emi, newLoan.TotalPayable, newLoan.PaidAmount, newLoan.RemainingAmount,
		newLoan.Status, newLoan.CreatedAt,
	))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "user_id", newLoan.UserID, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID, "user_id", created.UserID)
	return created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (l *loan.Loan, err error) {
	defer monitoring.ObserveDBQuery("GetLoanByID", time.Now(), &err)

	l, err = scanLoan(r.db.QueryRow(ctx, selectLoanByIDSQL, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	l, err := scanLoan(tx.QueryRow(ctx, selectLoanForUpdateSQL, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ListUserLoansForUpdate(ctx context.Context, tx pgx.Tx, userID int64) ([]*loan.Loan, error) {
	rows, err := tx.Query(ctx, selectUserLoansForUpdateSQL, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to lock user loans", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	loans, err := collectLoans(rows)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to scan locked user loans", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func (r *LoanRepository) FindLoanByUserAndStatus(ctx context.Context, userID int64, status loan.LoanStatus) (l *loan.Loan, err error) {
	defer monitoring.ObserveDBQuery("FindLoanByUserAndStatus", time.Now(), &err)

	l, err = scanLoan(r.db.QueryRow(ctx, selectLoanByUserAndStatusSQL, userID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no %s loan for user %d", apperrors.ErrNotFound, status, userID)
		}
		r.logger.ErrorContext(ctx, "Failed to find loan by user and status", "user_id", userID, "status", status, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ListLoansByUser(ctx context.Context, userID int64) (loans []*loan.Loan, err error) {
	defer monitoring.ObserveDBQuery("ListLoansByUser", time.Now(), &err)

	rows, err := r.db.Query(ctx, selectLoansByUserSQL, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query user loans", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	loans, err = collectLoans(rows)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to scan user loans", "user_id", userID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func (r *LoanRepository) ListLoansByStatus(ctx context.Context, status loan.LoanStatus) (loans []*loan.Loan, err error) {
	defer monitoring.ObserveDBQuery("ListLoansByStatus", time.Now(), &err)

	rows, err := r.db.Query(ctx, selectLoansByStatusSQL, status)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by status", "status", status, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	loans, err = collectLoans(rows)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to scan loans by status", "status", status, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func (r *LoanRepository) ListPendingLoanIDsCreatedBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	logCtx := r.logger.With(slog.String("operation", "ListPendingLoanIDsCreatedBefore"))

	rows, err := r.db.Query(ctx, selectStalePendingIDsSQL, loan.StatusPending, cutoff)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query stale pending loans", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query stale pending loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan stale pending loan ID", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning loan ID: %w", apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating stale pending loan IDs", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating loan IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Found stale pending loans", slog.Int("count", len(ids)))
	return ids, nil
}

func (r *LoanRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	cmdTag, err := tx.Exec(ctx, updateLoanSQL,
		l.PaidAmount, l.RemainingAmount, l.Status, l.StartDate, l.EndDate, l.UpdatedAt, l.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", l.ID, "status", l.Status, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan update affected zero rows", "loan_id", l.ID)
		return fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, l.ID)
	}
	r.logger.InfoContext(ctx, "Loan updated in DB", "loan_id", l.ID, "status", l.Status)
	return nil
}

func (r *LoanRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, p *loan.Payment) (*loan.Payment, error) {
	saved := *p
	err := tx.QueryRow(ctx, insertPaymentSQL,
		p.LoanID, p.UserID, p.Amount, p.Type, p.Reference, p.RemainingAfter, p.PaidAt,
	).Scan(&saved.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert payment", "loan_id", p.LoanID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return &saved, nil
}

func (r *LoanRepository) ListPaymentsByLoanID(ctx context.Context, loanID int64) (payments []*loan.Payment, err error) {
	defer monitoring.ObserveDBQuery("ListPaymentsByLoanID", time.Now(), &err)

	rows, err := r.db.Query(ctx, selectPaymentsByLoanSQL, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	payments = make([]*loan.Payment, 0)
	for rows.Next() {
		var p loan.Payment
		if err = rows.Scan(&p.ID, &p.LoanID, &p.UserID, &p.Amount, &p.Type, &p.Reference, &p.RemainingAfter, &p.PaidAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		payments = append(payments, &p)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating payment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return payments, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		case "23503", "23514":
			contextLogger.Warn("Database constraint violation", "code", pgErr.Code, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
