package postgres

import (
	"context"
	"regexp"
	"testing"

	"miniloan/internal/domain/user"
	"miniloan/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "name", "email", "password_hash", "role", "occupation", "monthly_income", "created_at", "updated_at"}

func setupUserRepo(t *testing.T) (context.Context, *UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}
	return context.Background(), NewUserRepository(mockPool, logger), mockPool
}

func userRow(rows *pgxmock.Rows, id int64, email string, role user.Role) *pgxmock.Rows {
	return rows.AddRow(id, "Asha", email, "$2a$hash", role, "Engineer", "45000.00", createdAt, createdAt)
}

func TestCreateUser(t *testing.T) {
	u := &user.User{Name: "Asha", Email: "asha@example.com", PasswordHash: "$2a$hash", Role: user.RoleUser,
		Occupation: "Engineer", MonthlyIncome: dec("45000")}

	t.Run("success", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta(insertUserSQL)).
			WithArgs(u.Name, u.Email, u.PasswordHash, u.Role, u.Occupation, u.MonthlyIncome).
			WillReturnRows(userRow(pgxmock.NewRows(userCols), 1, u.Email, user.RoleUser))

		created, err := repo.CreateUser(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, user.RoleUser, created.Role)
		assert.True(t, dec("45000").Equal(created.MonthlyIncome))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("duplicate email", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta(insertUserSQL)).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := repo.CreateUser(ctx, u)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("nil user", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		_, err := repo.CreateUser(ctx, nil)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestGetUser(t *testing.T) {
	t.Run("by email", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta(selectUserByEmailSQL)).WithArgs("root@example.com").
			WillReturnRows(userRow(pgxmock.NewRows(userCols), 2, "root@example.com", user.RoleAdmin))

		u, err := repo.GetUserByEmail(ctx, "root@example.com")
		require.NoError(t, err)
		assert.True(t, u.IsAdmin())
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("by id not found", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta(selectUserByIDSQL)).WithArgs(int64(3)).WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetUserByID(ctx, 3)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("profile", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		u := &user.User{ID: 1, Name: "Asha K", Occupation: "Architect", MonthlyIncome: dec("60000")}
		mockPool.ExpectExec(regexp.QuoteMeta(updateUserProfileSQL)).
			WithArgs(u.Name, u.Occupation, u.MonthlyIncome, u.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.UpdateProfile(ctx, u))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("password for missing user", func(t *testing.T) {
		ctx, repo, mockPool := setupUserRepo(t)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta(updateUserPasswordSQL)).WithArgs("$2a$new", int64(9)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.UpdatePassword(ctx, 9, "$2a$new"), apperrors.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestListUsers(t *testing.T) {
	ctx, repo, mockPool := setupUserRepo(t)
	defer mockPool.Close()

	rows := userRow(userRow(pgxmock.NewRows(userCols), 1, "a@example.com", user.RoleUser), 2, "b@example.com", user.RoleAdmin)
	mockPool.ExpectQuery(regexp.QuoteMeta(selectUsersSQL)).WillReturnRows(rows)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b@example.com", users[1].Email)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
