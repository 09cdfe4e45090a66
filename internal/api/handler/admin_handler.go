package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/domain/loan"
	"miniloan/internal/domain/user"
)

type AdminHandler struct {
	loans  loan.LoanService
	users  user.Service
	logger *slog.Logger
}

func NewAdminHandler(loans loan.LoanService, users user.Service, l *slog.Logger) *AdminHandler {
	if loans == nil || users == nil {
		panic("admin handler dependencies cannot be nil")
	}
	return &AdminHandler{
		loans:  loans,
		users:  users,
		logger: l.With("component", "AdminHandler"),
	}
}

// ListLoans handles GET /admin/loans
// @Summary List loans by status
// @Description Lists loans of every borrower in one status. Defaults to PENDING, which is the approval queue.
// @Tags Admin
// @Produce json
// @Param status query string false "Loan status" Enums(PENDING, APPROVED, REJECTED, COMPLETED)
// @Success 200 {array} dto.LoanResponse "Loans"
// @Failure 400 {object} dto.ErrorResponse "Unknown status"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 403 {object} dto.ErrorResponse "Not an administrator"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/loans [get]
// @Security BearerAuth
func (h *AdminHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	status := loan.StatusPending
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status = loan.LoanStatus(strings.ToUpper(raw))
	}

	loans, err := h.loans.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to list loans", slog.String("status", string(status)), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanListResponse(loans))
}

// Approve handles POST /admin/loans/{loanID}/approve
// @Summary Approve an application
// @Description Moves a PENDING loan to APPROVED. Fails when the borrower already has an approved loan.
// @Tags Admin
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Success 200 {object} dto.LoanResponse "Approved loan"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 403 {object} dto.ErrorResponse "Not an administrator"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is not pending or borrower has an active loan"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/loans/{loanID}/approve [post]
// @Security BearerAuth
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve", h.loans.Approve)
}

// Reject handles POST /admin/loans/{loanID}/reject
// @Summary Reject an application
// @Tags Admin
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Success 200 {object} dto.LoanResponse "Rejected loan"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 403 {object} dto.ErrorResponse "Not an administrator"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is not pending"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/loans/{loanID}/reject [post]
// @Security BearerAuth
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject", h.loans.Reject)
}

func (h *AdminHandler) decide(w http.ResponseWriter, r *http.Request, action string, apply func(ctx context.Context, loanID int64) (*loan.Loan, error)) {
	loanID, err := getIDFromURL(r, loanIDParam)
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := apply(r.Context(), loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to "+action+" loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan decided", slog.String("action", action), slog.Int64("loanID", loanID), slog.String("status", string(l.Status)))
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// ListUsers handles GET /admin/users
// @Summary List users
// @Tags Admin
// @Produce json
// @Success 200 {array} dto.UserResponse "Users"
// @Failure 403 {object} dto.ErrorResponse "Not an administrator"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/users [get]
// @Security BearerAuth
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list users", slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewUserListResponse(users))
}
