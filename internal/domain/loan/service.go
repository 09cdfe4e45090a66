package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"miniloan/internal/domain/quote"
	"miniloan/internal/domain/user"
	"miniloan/internal/event"
	"miniloan/internal/infrastructure/monitoring"
	"miniloan/internal/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const staleRejectWorkers = 4

type UserFinder interface {
	GetUser(ctx context.Context, userID int64) (*user.User, error)
}

type LoanService interface {
	Apply(ctx context.Context, userID int64, principal decimal.Decimal, tenureMonths int) (*Loan, error)

	Approve(ctx context.Context, loanID int64) (*Loan, error)

	Reject(ctx context.Context, loanID int64) (*Loan, error)

	Pay(ctx context.Context, userID, loanID int64, amount decimal.Decimal, kind PaymentType) (*Loan, *Payment, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetLoanForUser(ctx context.Context, userID, loanID int64) (*Loan, error)

	CurrentLoan(ctx context.Context, userID int64) (*Loan, error)

	History(ctx context.Context, userID int64) ([]*Loan, error)

	ListByStatus(ctx context.Context, status LoanStatus) ([]*Loan, error)

	Payments(ctx context.Context, loanID int64) ([]*Payment, error)

	ExpireStaleApplications(ctx context.Context, olderThan time.Duration) (int, error)
}

type loanServiceImpl struct {
	repo          Repository
	users         UserFinder
	quotes        quote.Calculator
	publisher     event.Publisher
	defaultIncome decimal.Decimal
	logger        *slog.Logger
	now           func() time.Time
}

func NewLoanService(r Repository, users UserFinder, quotes quote.Calculator, publisher event.Publisher, defaultIncome decimal.Decimal, logger *slog.Logger) LoanService {
	return &loanServiceImpl{
		repo:          r,
		users:         users,
		quotes:        quotes,
		publisher:     publisher,
		defaultIncome: defaultIncome,
		logger:        logger.With("component", "LoanService"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *loanServiceImpl) Apply(ctx context.Context, userID int64, principal decimal.Decimal, tenureMonths int) (*Loan, error) {
	s.logger.Info("Applying for loan", "userID", userID, "amount", principal.String(), "tenure", tenureMonths)

	applicant, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load applicant", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}

	existing, err := s.repo.FindLoanByUserAndStatus(ctx, userID, StatusApproved)
	switch {
	case err == nil:
		s.logger.Warn("Applicant already has an active loan", "userID", userID, "loanID", existing.ID)
		return nil, fmt.Errorf("%w: user %d already has an active loan (LoanID: %d)", apperrors.ErrConflict, userID, existing.ID)
	case !errors.Is(err, apperrors.ErrNotFound):
		s.logger.Error("Failed to check for an active loan", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to check for an active loan: %w", err)
	}

	income := user.IncomeOrDefault(applicant, s.defaultIncome)
	q, err := s.quotes.Calculate(ctx, quote.Request{Principal: principal, TenureMonths: tenureMonths, MonthlyIncome: &income})
	if err != nil {
		return nil, err
	}

	l, err := NewLoan(userID, q, s.now())
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateLoan(ctx, l)
	if err != nil {
		s.logger.Error("Failed to save loan", "error", err)
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}

	monitoring.RecordLoanTransition(string(StatusPending))
	s.publish(ctx, event.TopicLoanApplied, created, applicant.Email, nil)
	s.logger.Info("Loan application created", "loanID", created.ID, "userID", userID)
	return created, nil
}

// Approve approves a pending loan and rejects the borrower's other pending
// applications in the same transaction. All of the borrower's loans are locked
// in id order so concurrent approvals for one user serialise.
func (s *loanServiceImpl) Approve(ctx context.Context, loanID int64) (approved *Loan, err error) {
	s.logger.Info("Approving loan", "loanID", loanID)

	target, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer s.rollbackOnError(ctx, tx, &err)

	loans, err := s.repo.ListUserLoansForUpdate(ctx, tx, target.UserID)
	if err != nil {
		s.logger.Error("Failed to lock borrower loans", "userID", target.UserID, "error", err)
		return nil, fmt.Errorf("failed to lock borrower loans: %w", err)
	}

	for _, l := range loans {
		if l.ID == loanID {
			approved = l
		}
	}
	if approved == nil {
		err = fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		return nil, err
	}
	for _, l := range loans {
		if l.ID != loanID && l.Status == StatusApproved && approved.Status == StatusPending {
			err = fmt.Errorf("%w: user %d already has an active loan (LoanID: %d)", apperrors.ErrConflict, l.UserID, l.ID)
			return nil, err
		}
	}

	now := s.now()
	var autoRejected []*Loan
	if err = approved.Approve(now); err != nil {
		return nil, err
	}
	if err = s.repo.UpdateLoanInTx(ctx, tx, approved); err != nil {
		s.logger.Error("Failed to update approved loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	for _, l := range loans {
		if l.ID == loanID || l.Status != StatusPending {
			continue
		}
		if err = l.Reject(now); err != nil {
			return nil, err
		}
		if err = s.repo.UpdateLoanInTx(ctx, tx, l); err != nil {
			s.logger.Error("Failed to auto-reject pending loan", "loanID", l.ID, "error", err)
			return nil, fmt.Errorf("failed to reject pending loan %d: %w", l.ID, err)
		}
		autoRejected = append(autoRejected, l)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		s.logger.Error("Failed to commit transaction", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	email := s.borrowerEmail(ctx, approved.UserID)
	monitoring.RecordLoanTransition(string(StatusApproved))
	s.publish(ctx, event.TopicLoanApproved, approved, email, nil)
	for _, l := range autoRejected {
		monitoring.RecordLoanTransition(string(StatusRejected))
		s.publish(ctx, event.TopicLoanRejected, l, email, nil)
	}

	s.logger.Info("Loan approved", "loanID", loanID, "autoRejected", len(autoRejected))
	return approved, nil
}

func (s *loanServiceImpl) Reject(ctx context.Context, loanID int64) (rejected *Loan, err error) {
	s.logger.Info("Rejecting loan", "loanID", loanID)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer s.rollbackOnError(ctx, tx, &err)

	rejected, err = s.lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if err = rejected.Reject(s.now()); err != nil {
		return nil, err
	}
	if err = s.repo.UpdateLoanInTx(ctx, tx, rejected); err != nil {
		s.logger.Error("Failed to update rejected loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		s.logger.Error("Failed to commit transaction", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordLoanTransition(string(StatusRejected))
	s.publish(ctx, event.TopicLoanRejected, rejected, s.borrowerEmail(ctx, rejected.UserID), nil)
	s.logger.Info("Loan rejected", "loanID", loanID)
	return rejected, nil
}

// Pay records a repayment. The loan row stays locked from read to commit, so
// concurrent payments against one loan are applied one after the other.
func (s *loanServiceImpl) Pay(ctx context.Context, userID, loanID int64, amount decimal.Decimal, kind PaymentType) (paid *Loan, payment *Payment, err error) {
	s.logger.Info("Making payment", "loanID", loanID, "amount", amount.String(), "type", kind)

	defer func() {
		monitoring.RecordPayment(string(kind), paymentOutcome(err))
	}()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return nil, nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer s.rollbackOnError(ctx, tx, &err)

	paid, err = s.lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, nil, err
	}
	if paid.UserID != userID {
		s.logger.Warn("Payment attempted on another user's loan", "loanID", loanID, "userID", userID)
		err = fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		return nil, nil, err
	}

	payment, err = paid.Pay(amount, kind, s.now())
	if err != nil {
		s.logger.Warn("Payment refused", "loanID", loanID, "error", err)
		return nil, nil, err
	}
	payment.Reference = uuid.NewString()

	if err = s.repo.UpdateLoanInTx(ctx, tx, paid); err != nil {
		s.logger.Error("Failed to update loan balance", "loanID", loanID, "error", err)
		return nil, nil, fmt.Errorf("failed to update loan: %w", err)
	}
	payment, err = s.repo.InsertPaymentInTx(ctx, tx, payment)
	if err != nil {
		s.logger.Error("Failed to record payment", "loanID", loanID, "error", err)
		return nil, nil, fmt.Errorf("failed to record payment: %w", err)
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		s.logger.Error("Failed to commit transaction", "loanID", loanID, "error", err)
		return nil, nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	email := s.borrowerEmail(ctx, userID)
	s.publish(ctx, event.TopicPaymentReceived, paid, email, payment)
	if paid.Status == StatusCompleted {
		monitoring.RecordLoanTransition(string(StatusCompleted))
		s.publish(ctx, event.TopicLoanCompleted, paid, email, payment)
	}

	s.logger.Info("Payment processed successfully", "loanID", loanID, "reference", payment.Reference, "remaining", paid.RemainingAmount.String())
	return paid, payment, nil
}

func paymentOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "failure_amount"
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return "failure_balance"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "failure_status"
	case errors.Is(err, apperrors.ErrNotFound):
		return "failure_not_found"
	default:
		return "failure_internal"
	}
}

func (s *loanServiceImpl) lockLoan(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to lock loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to lock loan %d: %w", loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) rollbackOnError(ctx context.Context, tx pgx.Tx, errp *error) {
	if p := recover(); p != nil {
		s.logger.Error("Panic occurred during loan transaction", "error", p)
		_ = s.repo.RollbackTx(ctx, tx)
		panic(p)
	}
	if *errp != nil {
		s.logger.Debug("Rolling back transaction", "error", *errp)
		_ = s.repo.RollbackTx(ctx, tx)
	}
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to get loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}
	return l, nil
}

// GetLoanForUser hides loans of other users behind ErrNotFound.
func (s *loanServiceImpl) GetLoanForUser(ctx context.Context, userID, loanID int64) (*Loan, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
	}
	return l, nil
}

func (s *loanServiceImpl) CurrentLoan(ctx context.Context, userID int64) (*Loan, error) {
	l, err := s.repo.FindLoanByUserAndStatus(ctx, userID, StatusApproved)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d has no active loan", apperrors.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get active loan: %w", err)
	}
	return l, nil
}

func (s *loanServiceImpl) History(ctx context.Context, userID int64) ([]*Loan, error) {
	loans, err := s.repo.ListLoansByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list user loans", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (s *loanServiceImpl) ListByStatus(ctx context.Context, status LoanStatus) ([]*Loan, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown loan status %q", apperrors.ErrInvalidInput, status)
	}
	loans, err := s.repo.ListLoansByStatus(ctx, status)
	if err != nil {
		s.logger.Error("Failed to list loans by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (s *loanServiceImpl) Payments(ctx context.Context, loanID int64) ([]*Payment, error) {
	payments, err := s.repo.ListPaymentsByLoanID(ctx, loanID)
	if err != nil {
		s.logger.Error("Failed to list payments", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// ExpireStaleApplications rejects pending applications created more than
// olderThan ago and returns how many were rejected. A loan decided by an admin
// in the meantime is skipped.
func (s *loanServiceImpl) ExpireStaleApplications(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	ids, err := s.repo.ListPendingLoanIDsCreatedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to list stale applications", "error", err)
		return 0, fmt.Errorf("failed to list stale applications: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		expired  int
		failures []error
		sem      = make(chan struct{}, staleRejectWorkers)
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(loanID int64) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.Reject(ctx, loanID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				expired++
			case errors.Is(err, apperrors.ErrInvalidTransition):
			default:
				failures = append(failures, fmt.Errorf("loan %d: %w", loanID, err))
			}
		}(id)
	}
	wg.Wait()

	if len(failures) > 0 {
		return expired, errors.Join(failures...)
	}
	return expired, ctx.Err()
}

func (s *loanServiceImpl) borrowerEmail(ctx context.Context, userID int64) string {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("Could not resolve borrower email for event", "userID", userID, "error", err)
		return ""
	}
	return u.Email
}

func (s *loanServiceImpl) publish(ctx context.Context, topic event.Topic, l *Loan, email string, p *Payment) {
	if s.publisher == nil {
		return
	}
	payload := event.LoanEvent{
		LoanID:          l.ID,
		UserID:          l.UserID,
		Email:           email,
		Status:          string(l.Status),
		Amount:          l.Amount,
		Emi:             l.Emi,
		TotalPayable:    l.TotalPayable,
		PaidAmount:      l.PaidAmount,
		RemainingAmount: l.RemainingAmount,
		Timestamp:       l.UpdatedAt,
	}
	if p != nil {
		payload.PaymentAmount = p.Amount
		payload.PaymentReference = p.Reference
	}
	s.publisher.Publish(ctx, event.Event{Topic: topic, OccurredAt: l.UpdatedAt, Payload: payload})
}
