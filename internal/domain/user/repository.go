package user

import "context"

type Repository interface {
	CreateUser(ctx context.Context, u *User) (*User, error)

	GetUserByID(ctx context.Context, userID int64) (*User, error)

	GetUserByEmail(ctx context.Context, email string) (*User, error)

	UpdateProfile(ctx context.Context, u *User) error

	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	ListUsers(ctx context.Context) ([]*User, error)
}
