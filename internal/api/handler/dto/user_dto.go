package dto

import (
	"strings"
	"time"

	"miniloan/internal/domain/user"
	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Name          string          `json:"name" example:"Asha Rao"`
	Email         string          `json:"email" example:"asha@example.com"`
	Password      string          `json:"password" example:"s3cret-pass"`
	Occupation    string          `json:"occupation" example:"Engineer"`
	MonthlyIncome decimal.Decimal `json:"monthlyIncome" swaggertype:"string" example:"45000"`
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperrors.NewValidationError("name", "cannot be empty")
	}
	if strings.TrimSpace(r.Email) == "" {
		return apperrors.NewValidationError("email", "cannot be empty")
	}
	if r.Password == "" {
		return apperrors.NewValidationError("password", "cannot be empty")
	}
	if r.MonthlyIncome.IsNegative() {
		return apperrors.NewValidationError("monthlyIncome", "must not be negative")
	}
	return nil
}

func (r *RegisterRequest) Input() user.RegisterInput {
	return user.RegisterInput{
		Name:          strings.TrimSpace(r.Name),
		Email:         r.Email,
		Password:      r.Password,
		Occupation:    strings.TrimSpace(r.Occupation),
		MonthlyIncome: r.MonthlyIncome,
	}
}

type LoginRequest struct {
	Email    string `json:"email" example:"asha@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return apperrors.NewValidationError("", "email and password are required")
	}
	return nil
}

type ResetPasswordRequest struct {
	Email string `json:"email" example:"asha@example.com"`
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return apperrors.NewValidationError("email", "cannot be empty")
	}
	return nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	if r.CurrentPassword == "" {
		return apperrors.NewValidationError("currentPassword", "cannot be empty")
	}
	if r.NewPassword == "" {
		return apperrors.NewValidationError("newPassword", "cannot be empty")
	}
	return nil
}

type UpdateProfileRequest struct {
	Name          *string          `json:"name,omitempty"`
	Occupation    *string          `json:"occupation,omitempty"`
	MonthlyIncome *decimal.Decimal `json:"monthlyIncome,omitempty" swaggertype:"string"`
}

func (r *UpdateProfileRequest) Validate() error {
	if r.Name == nil && r.Occupation == nil && r.MonthlyIncome == nil {
		return apperrors.NewValidationError("", "at least one field must be provided")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return apperrors.NewValidationError("name", "cannot be empty")
	}
	if r.MonthlyIncome != nil && r.MonthlyIncome.IsNegative() {
		return apperrors.NewValidationError("monthlyIncome", "must not be negative")
	}
	return nil
}

func (r *UpdateProfileRequest) Update() user.ProfileUpdate {
	return user.ProfileUpdate{Name: r.Name, Occupation: r.Occupation, MonthlyIncome: r.MonthlyIncome}
}

type UserResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Occupation    string    `json:"occupation,omitempty"`
	MonthlyIncome string    `json:"monthlyIncome"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewUserResponse(u *user.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		Occupation:    u.Occupation,
		MonthlyIncome: money(u.MonthlyIncome),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func NewUserListResponse(users []*user.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = NewUserResponse(u)
	}
	return out
}

type TokenResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}
