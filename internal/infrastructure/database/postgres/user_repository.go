package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"miniloan/internal/domain/user"
	"miniloan/internal/infrastructure/monitoring"
	"miniloan/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password_hash, role, occupation, monthly_income, created_at, updated_at`

const (
	insertUserSQL = `
        INSERT INTO users (name, email, password_hash, role, occupation, monthly_income, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING ` + userColumns

	selectUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	selectUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	selectUsersSQL = `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`

	updateUserProfileSQL = `
        UPDATE users
        SET name = $1, occupation = $2, monthly_income = $3, updated_at = NOW()
        WHERE id = $4`

	updateUserPasswordSQL = `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
)

type UserRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db DBPool, logger *slog.Logger) *UserRepository {
	if db == nil {
		panic("DBPool cannot be nil for UserRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("No logger provided to NewUserRepository, using default stderr handler")
	}
	return &UserRepository{
		db:     db,
		logger: logger.With("component", "UserRepository"),
	}
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Occupation,
		&u.MonthlyIncome,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, u *user.User) (created *user.User, err error) {
	if u == nil {
		return nil, fmt.Errorf("%w: user cannot be nil", apperrors.ErrInvalidInput)
	}
	defer monitoring.ObserveDBQuery("CreateUser", time.Now(), &err)

	created, err = scanUser(r.db.QueryRow(ctx, insertUserSQL,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.Occupation,
		u.MonthlyIncome,
	))
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "User with this email already exists")
			return nil, translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to insert user: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "User inserted successfully", slog.Int64("userID", created.ID), slog.String("role", string(created.Role)))
	return created, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID int64) (u *user.User, err error) {
	defer monitoring.ObserveDBQuery("GetUserByID", time.Now(), &err)

	u, err = scanUser(r.db.QueryRow(ctx, selectUserByIDSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "User not found", slog.Int64("userID", userID))
			return nil, fmt.Errorf("%w: user %d", apperrors.ErrNotFound, userID)
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan user by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get user by ID: %w", apperrors.ErrDatabase, err)
	}
	return u, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (u *user.User, err error) {
	defer monitoring.ObserveDBQuery("GetUserByEmail", time.Now(), &err)

	u, err = scanUser(r.db.QueryRow(ctx, selectUserByEmailSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user not found", apperrors.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan user by email", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get user by email: %w", apperrors.ErrDatabase, err)
	}
	return u, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *user.User) error {
	cmdTag, err := r.db.Exec(ctx, updateUserProfileSQL, u.Name, u.Occupation, u.MonthlyIncome, u.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update user profile", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update user profile: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Profile update affected zero rows, user likely not found", slog.Int64("userID", u.ID))
		return apperrors.ErrNotFound
	}

	r.logger.InfoContext(ctx, "User profile updated successfully", slog.Int64("userID", u.ID))
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	cmdTag, err := r.db.Exec(ctx, updateUserPasswordSQL, passwordHash, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update password", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update password: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Password update affected zero rows, user likely not found", slog.Int64("userID", userID))
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := r.db.Query(ctx, selectUsersSQL)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query users", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query users: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan user row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan user row: %w", apperrors.ErrDatabase, err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating user rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating user rows: %w", apperrors.ErrDatabase, err)
	}

	r.logger.DebugContext(ctx, "Finished listing users", slog.Int("count", len(users)))
	return users, nil
}
