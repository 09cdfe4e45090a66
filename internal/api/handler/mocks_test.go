package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/domain/loan"
	"miniloan/internal/domain/quote"
	"miniloan/internal/domain/rate"
	"miniloan/internal/domain/user"
	"miniloan/internal/event"
	"miniloan/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) Calculate(ctx context.Context, req quote.Request) (*quote.Quote, error) {
	args := m.Called(ctx, req)
	q, _ := args.Get(0).(*quote.Quote)
	return q, args.Error(1)
}

func (m *MockQuoteService) Limits() quote.Limits {
	return m.Called().Get(0).(quote.Limits)
}

func (m *MockQuoteService) Tiers() []rate.Tier {
	return m.Called().Get(0).([]rate.Tier)
}

type MockUserService struct {
	mock.Mock
}

func userOrNil(v any) *user.User {
	u, _ := v.(*user.User)
	return u
}

func (m *MockUserService) Register(ctx context.Context, in user.RegisterInput) (*user.User, error) {
	args := m.Called(ctx, in)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) RegisterAdmin(ctx context.Context, in user.RegisterInput, adminKey string) (*user.User, error) {
	args := m.Called(ctx, in, adminKey)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (*user.User, error) {
	args := m.Called(ctx, email, password)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) LoginAdmin(ctx context.Context, email, password string) (*user.User, error) {
	args := m.Called(ctx, email, password)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID int64) (*user.User, error) {
	args := m.Called(ctx, userID)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID int64, upd user.ProfileUpdate) (*user.User, error) {
	args := m.Called(ctx, userID, upd)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	return m.Called(ctx, userID, currentPassword, newPassword).Error(0)
}

func (m *MockUserService) ResetPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]*user.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*user.User)
	return users, args.Error(1)
}

type MockLoanService struct {
	mock.Mock
}

func loanOrNil(v any) *loan.Loan {
	l, _ := v.(*loan.Loan)
	return l
}

func (m *MockLoanService) Apply(ctx context.Context, userID int64, principal decimal.Decimal, tenureMonths int) (*loan.Loan, error) {
	args := m.Called(ctx, userID, principal, tenureMonths)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) Approve(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) Reject(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) Pay(ctx context.Context, userID, loanID int64, amount decimal.Decimal, kind loan.PaymentType) (*loan.Loan, *loan.Payment, error) {
	args := m.Called(ctx, userID, loanID, amount, kind)
	p, _ := args.Get(1).(*loan.Payment)
	return loanOrNil(args.Get(0)), p, args.Error(2)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) GetLoanForUser(ctx context.Context, userID, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, userID, loanID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) CurrentLoan(ctx context.Context, userID int64) (*loan.Loan, error) {
	args := m.Called(ctx, userID)
	return loanOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLoanService) History(ctx context.Context, userID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, userID)
	loans, _ := args.Get(0).([]*loan.Loan)
	return loans, args.Error(1)
}

func (m *MockLoanService) ListByStatus(ctx context.Context, status loan.LoanStatus) ([]*loan.Loan, error) {
	args := m.Called(ctx, status)
	loans, _ := args.Get(0).([]*loan.Loan)
	return loans, args.Error(1)
}

func (m *MockLoanService) Payments(ctx context.Context, loanID int64) ([]*loan.Payment, error) {
	args := m.Called(ctx, loanID)
	payments, _ := args.Get(0).([]*loan.Payment)
	return payments, args.Error(1)
}

func (m *MockLoanService) ExpireStaleApplications(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(u *user.User) (string, *session.Session, error) {
	args := m.Called(u)
	s, _ := args.Get(1).(*session.Session)
	return args.String(0), s, args.Error(2)
}

type MockDenylist struct {
	mock.Mock
}

func (m *MockDenylist) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	return m.Called(ctx, sessionID, until).Error(0)
}

func (m *MockDenylist) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) topics() []event.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Topic, len(p.events))
	for i, e := range p.events {
		out[i] = e.Topic
	}
	return out
}

var borrowerSession = &session.Session{
	ID:        "sess-1",
	UserID:    10,
	Email:     "asha@example.com",
	Role:      user.RoleUser,
	IssuedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	ExpiresAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
}

func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	return httptest.NewRequest(method, target, reader)
}

func withSession(r *http.Request, s *session.Session) *http.Request {
	return r.WithContext(session.NewContext(r.Context(), s))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorDetail {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}
