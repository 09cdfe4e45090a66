package user

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID            int64
	Name          string
	Email         string
	PasswordHash  string
	Role          Role
	Occupation    string
	MonthlyIncome decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type RegisterInput struct {
	Name          string
	Email         string
	Password      string
	Occupation    string
	MonthlyIncome decimal.Decimal
}

// ProfileUpdate holds the editable profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	Name          *string
	Occupation    *string
	MonthlyIncome *decimal.Decimal
}
