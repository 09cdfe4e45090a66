package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/domain/user"
	"miniloan/internal/event"
	"miniloan/internal/session"
)

const adminKeyHeader = "X-Admin-Key"

type TokenIssuer interface {
	Issue(u *user.User) (string, *session.Session, error)
}

type AuthHandler struct {
	users     user.Service
	tokens    TokenIssuer
	denylist  session.Denylist
	publisher event.Publisher
	logger    *slog.Logger
}

func NewAuthHandler(users user.Service, tokens TokenIssuer, denylist session.Denylist, publisher event.Publisher, l *slog.Logger) *AuthHandler {
	if users == nil || tokens == nil || denylist == nil || publisher == nil {
		panic("auth handler dependencies cannot be nil")
	}
	return &AuthHandler{
		users:     users,
		tokens:    tokens,
		denylist:  denylist,
		publisher: publisher,
		logger:    l.With("component", "AuthHandler"),
	}
}

// Register handles POST /auth/register
// @Summary Register a borrower
// @Description Creates a borrower account. Email addresses are unique and case-insensitive.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} dto.UserResponse "Account created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "Email already registered"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, func(ctx context.Context, in user.RegisterInput) (*user.User, error) {
		return h.users.Register(ctx, in)
	})
}

// RegisterAdmin handles POST /auth/register-admin
// @Summary Register an administrator
// @Description Creates an admin account. The request must carry the configured registration key in the X-Admin-Key header.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Admin registration key"
// @Param request body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} dto.UserResponse "Admin account created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 403 {object} dto.ErrorResponse "Wrong or missing admin key"
// @Failure 409 {object} dto.ErrorResponse "Email already registered"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/register-admin [post]
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(adminKeyHeader)
	h.register(w, r, func(ctx context.Context, in user.RegisterInput) (*user.User, error) {
		return h.users.RegisterAdmin(ctx, in, key)
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, create func(context.Context, user.RegisterInput) (*user.User, error)) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Registration validation failed", slog.Any("error", err))
		respondError(w, err)
		return
	}

	u, err := create(r.Context(), req.Input())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to register user", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "User registered", slog.Int64("userID", u.ID), slog.String("role", string(u.Role)))
	respondJSON(w, http.StatusCreated, dto.NewUserResponse(u))
}

// Login handles POST /auth/login
// @Summary Log in
// @Description Checks the credentials and returns a bearer token for the new session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.TokenResponse "Session started"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.users.Login)
}

// LoginAdmin handles POST /auth/login-admin
// @Summary Log in as administrator
// @Description Same as login but only succeeds for admin accounts.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.TokenResponse "Session started"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 403 {object} dto.ErrorResponse "Account is not an administrator"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login-admin [post]
func (h *AuthHandler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.users.LoginAdmin)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, authenticate func(ctx context.Context, email, password string) (*user.User, error)) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	u, err := authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Login failed", slog.Any("error", err))
		respondError(w, err)
		return
	}

	token, s, err := h.tokens.Issue(u)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to issue token", slog.Int64("userID", u.ID), slog.Any("error", err))
		respondError(w, fmt.Errorf("failed to issue token: %w", err))
		return
	}

	h.publisher.Publish(r.Context(), event.Event{
		Topic:   event.TopicSessionStarted,
		Payload: event.SessionEvent{UserID: u.ID, Email: u.Email, Role: string(u.Role), ExpiresAt: s.ExpiresAt},
	})

	h.logger.InfoContext(r.Context(), "Session started", slog.Int64("userID", u.ID), slog.String("sessionID", s.ID))
	respondJSON(w, http.StatusOK, dto.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: s.ExpiresAt,
		User:      dto.NewUserResponse(u),
	})
}

// Logout handles POST /auth/logout
// @Summary Log out
// @Description Revokes the bearer token of the current session.
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.MessageResponse "Session ended"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/logout [post]
// @Security BearerAuth
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.denylist.Revoke(r.Context(), s.ID, s.ExpiresAt); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to revoke session", slog.String("sessionID", s.ID), slog.Any("error", err))
		respondError(w, fmt.Errorf("failed to revoke session: %w", err))
		return
	}

	h.publisher.Publish(r.Context(), event.Event{
		Topic:   event.TopicSessionEnded,
		Payload: event.SessionEvent{UserID: s.UserID, Email: s.Email, Role: string(s.Role), ExpiresAt: s.ExpiresAt},
	})

	h.logger.InfoContext(r.Context(), "Session ended", slog.Int64("userID", s.UserID), slog.String("sessionID", s.ID))
	respondJSON(w, http.StatusOK, dto.MessageResponse{Message: "logged out"})
}

// ResetPassword handles POST /auth/reset-password
// @Summary Reset a forgotten password
// @Description Emails a temporary password when the address is registered. The response is the same whether or not it is.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Account email"
// @Success 202 {object} dto.MessageResponse "Reset accepted"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	if err := h.users.ResetPassword(r.Context(), req.Email); err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Password reset failed", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dto.MessageResponse{Message: "if the account exists a temporary password has been sent"})
}
