package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"miniloan/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		wantCode string
	}{
		{apperrors.NewValidationError("amount", "bad"), http.StatusBadRequest, "INVALID_INPUT"},
		{fmt.Errorf("%w: x", apperrors.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{fmt.Errorf("%w: x", apperrors.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{fmt.Errorf("%w: x", apperrors.ErrInsufficientBalance), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{fmt.Errorf("%w: x", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: x", apperrors.ErrConflict), http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("%w: x", apperrors.ErrAlreadyExists), http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("%w: x", apperrors.ErrUnauthorized), http.StatusUnauthorized, "UNAUTHORIZED"},
		{fmt.Errorf("%w: x", apperrors.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("%w: x", apperrors.ErrDatabase), http.StatusInternalServerError, "INTERNAL"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+" "+tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestRespondErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, apperrors.NewValidationError("tenureMonths", "must be positive"))
	detail := decodeError(t, rec)
	assert.Equal(t, "tenureMonths", detail.Field)
	assert.Contains(t, detail.Message, "must be positive")

	rec = httptest.NewRecorder()
	respondError(rec, errors.New("pq: password authentication failed"))
	assert.Equal(t, "An unexpected error occurred.", decodeError(t, rec).Message)
}

func TestGetIDFromURL(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-4", ""} {
		r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), loanIDParam, raw)
		_, err := getIDFromURL(r, loanIDParam)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "value %q", raw)
	}

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), loanIDParam, "42")
	id, err := getIDFromURL(r, loanIDParam)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Amount string `json:"amount"`
	}
	err := decodeJSON(newRequest(t, http.MethodPost, "/", `{"amount":"1","extra":true}`), &v)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
