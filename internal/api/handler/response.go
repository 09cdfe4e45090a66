package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/pkg/apperrors"
	"miniloan/internal/session"

	"github.com/go-chi/chi/v5"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: no request body", apperrors.ErrInvalidInput)
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// statusFor maps a domain error to its HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func respondError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	detail := dto.ErrorDetail{Code: code, Message: err.Error()}

	var validationError *apperrors.ValidationError
	if errors.As(err, &validationError) {
		detail.Field = validationError.Field
	}
	if status == http.StatusInternalServerError {
		slog.Default().Error("Unhandled internal error", "error", err)
		detail.Message = "An unexpected error occurred."
	}

	respondJSON(w, status, dto.ErrorResponse{Error: detail})
}

// logLevelFor is Error for failures that map to a 5xx status, Warn otherwise.
func logLevelFor(err error) slog.Level {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func getIDFromURL(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	if idStr == "" {
		return 0, fmt.Errorf("%w: %s not found in URL path", apperrors.ErrInvalidInput, param)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s format in URL path: %s", apperrors.ErrInvalidInput, param, idStr)
	}
	return id, nil
}

func currentSession(r *http.Request) (*session.Session, error) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return nil, fmt.Errorf("%w: no active session", apperrors.ErrUnauthorized)
	}
	return s, nil
}
