package handler

import (
	"log/slog"
	"net/http"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/domain/user"
)

type UserHandler struct {
	service user.Service
	logger  *slog.Logger
}

func NewUserHandler(s user.Service, l *slog.Logger) *UserHandler {
	if s == nil {
		panic("user service cannot be nil")
	}
	return &UserHandler{
		service: s,
		logger:  l.With("component", "UserHandler"),
	}
}

// GetMe handles GET /users/me
// @Summary Get the current profile
// @Tags Users
// @Produce json
// @Success 200 {object} dto.UserResponse "Profile"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 404 {object} dto.ErrorResponse "Account no longer exists"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users/me [get]
// @Security BearerAuth
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	u, err := h.service.GetUser(r.Context(), s.UserID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get user", slog.Int64("userID", s.UserID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewUserResponse(u))
}

// UpdateMe handles PUT /users/me
// @Summary Update the current profile
// @Description Changes name, occupation or monthly income. Omitted fields keep their value. The income is used to pick the rate of future applications.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} dto.UserResponse "Updated profile"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users/me [put]
// @Security BearerAuth
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), s.UserID, req.Update())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to update profile", slog.Int64("userID", s.UserID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Profile updated", slog.Int64("userID", u.ID))
	respondJSON(w, http.StatusOK, dto.NewUserResponse(u))
}

// ChangePassword handles PUT /users/me/password
// @Summary Change the password
// @Tags Users
// @Accept json
// @Param request body dto.ChangePasswordRequest true "Current and new password"
// @Success 204 "Password changed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 401 {object} dto.ErrorResponse "No valid session or wrong current password"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /users/me/password [put]
// @Security BearerAuth
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), s.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to change password", slog.Int64("userID", s.UserID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Password changed", slog.Int64("userID", s.UserID))
	respondJSON(w, http.StatusNoContent, nil)
}
