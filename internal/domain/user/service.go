package user

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperrors.ErrUnauthorized)

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, temporaryPassword string) error
}

type Options struct {
	AdminRegistrationKey string
	BcryptCost           int
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)

	RegisterAdmin(ctx context.Context, in RegisterInput, adminKey string) (*User, error)

	Login(ctx context.Context, email, password string) (*User, error)

	LoginAdmin(ctx context.Context, email, password string) (*User, error)

	GetUser(ctx context.Context, userID int64) (*User, error)

	UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*User, error)

	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error

	ResetPassword(ctx context.Context, email string) error

	ListUsers(ctx context.Context) ([]*User, error)
}

type userServiceImpl struct {
	repo   Repository
	mailer Mailer
	opts   Options
	logger *slog.Logger
}

func NewUserService(r Repository, m Mailer, opts Options, logger *slog.Logger) Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &userServiceImpl{repo: r, mailer: m, opts: opts, logger: logger.With("component", "UserService")}
}

func (s *userServiceImpl) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return s.register(ctx, in, RoleUser)
}

func (s *userServiceImpl) RegisterAdmin(ctx context.Context, in RegisterInput, adminKey string) (*User, error) {
	if s.opts.AdminRegistrationKey == "" {
		s.logger.Warn("Admin registration attempted but no registration key is configured")
		return nil, fmt.Errorf("%w: admin registration is disabled", apperrors.ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.opts.AdminRegistrationKey)) != 1 {
		s.logger.Warn("Admin registration attempted with a wrong key", "email", in.Email)
		return nil, fmt.Errorf("%w: invalid admin registration key", apperrors.ErrForbidden)
	}
	return s.register(ctx, in, RoleAdmin)
}

func (s *userServiceImpl) register(ctx context.Context, in RegisterInput, role Role) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "must not be empty")
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}
	if in.MonthlyIncome.IsNegative() {
		return nil, apperrors.NewValidationError("monthlyIncome", "must not be negative")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		s.logger.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("%w: failed to hash password: %v", apperrors.ErrInternalServer, err)
	}

	created, err := s.repo.CreateUser(ctx, &User{
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		Role:          role,
		Occupation:    strings.TrimSpace(in.Occupation),
		MonthlyIncome: in.MonthlyIncome,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			s.logger.Warn("Email already registered", "email", email)
			return nil, fmt.Errorf("%w: email %s is already registered", apperrors.ErrAlreadyExists, email)
		}
		s.logger.Error("Failed to create user", "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", "userID", created.ID, "role", created.Role)
	return created, nil
}

func (s *userServiceImpl) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in", "userID", u.ID)
	return u, nil
}

func (s *userServiceImpl) LoginAdmin(ctx context.Context, email, password string) (*User, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		s.logger.Warn("Non-admin attempted admin login", "userID", u.ID)
		return nil, fmt.Errorf("%w: user %d is not an administrator", apperrors.ErrForbidden, u.ID)
	}
	s.logger.Info("Admin logged in", "userID", u.ID)
	return u, nil
}

func (s *userServiceImpl) authenticate(ctx context.Context, email, password string) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, errInvalidCredentials
	}

	u, err := s.repo.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		s.logger.Error("Failed to load user for login", "error", err)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return u, nil
}

func (s *userServiceImpl) GetUser(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d", apperrors.ErrNotFound, userID)
		}
		s.logger.Error("Failed to get user", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name", "must not be empty")
		}
		u.Name = name
	}
	if upd.Occupation != nil {
		u.Occupation = strings.TrimSpace(*upd.Occupation)
	}
	if upd.MonthlyIncome != nil {
		if upd.MonthlyIncome.IsNegative() {
			return nil, apperrors.NewValidationError("monthlyIncome", "must not be negative")
		}
		u.MonthlyIncome = *upd.MonthlyIncome
	}

	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		s.logger.Error("Failed to update profile", "userID", userID, "error", err)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.logger.Info("Profile updated", "userID", userID)
	return u, nil
}

func (s *userServiceImpl) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("%w: current password does not match", apperrors.ErrUnauthorized)
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, newPassword)
}

// ResetPassword replaces the password of the account with a generated one and
// mails it to the owner. Unknown emails are logged and otherwise ignored so the
// endpoint cannot be used to probe for accounts.
func (s *userServiceImpl) ResetPassword(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	u, err := s.repo.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	temporary := rand.Text()[:12]
	if err := s.setPassword(ctx, u.ID, temporary); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, u.Email, u.Name, temporary); err != nil {
		s.logger.Error("Failed to send password reset email", "userID", u.ID, "error", err)
		return fmt.Errorf("%w: failed to send password reset email: %v", apperrors.ErrInternalServer, err)
	}
	s.logger.Info("Password reset", "userID", u.ID)
	return nil
}

func (s *userServiceImpl) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password: %v", apperrors.ErrInternalServer, err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		s.logger.Error("Failed to update password", "userID", userID, "error", err)
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *userServiceImpl) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", apperrors.NewValidationError("email", "must be a valid email address")
	}
	return strings.ToLower(addr.Address), nil
}

func validatePassword(field, password string) error {
	if len(password) < minPasswordLength {
		return apperrors.NewValidationError(field, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return nil
}

// IncomeOrDefault returns the user's declared income, or fallback when none was given.
func IncomeOrDefault(u *User, fallback decimal.Decimal) decimal.Decimal {
	if u == nil || u.MonthlyIncome.IsZero() {
		return fallback
	}
	return u.MonthlyIncome
}
