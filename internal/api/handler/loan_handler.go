package handler

import (
	"log/slog"
	"net/http"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/domain/loan"
)

const loanIDParam = "loanID"

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("loan service cannot be nil")
	}
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

// Apply handles POST /loans
// @Summary Apply for a loan
// @Description Creates a PENDING application priced from the borrower's monthly income. A borrower with a loan under repayment cannot apply.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.ApplyLoanRequest true "Amount and tenure"
// @Success 201 {object} dto.LoanResponse "Application created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or amount outside the allowed range"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 409 {object} dto.ErrorResponse "Borrower already has an active loan"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.ApplyLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	l, err := h.service.Apply(r.Context(), s.UserID, req.Amount, req.TenureMonths)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to create application", slog.Int64("userID", s.UserID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan application created", slog.Int64("loanID", l.ID), slog.Int64("userID", s.UserID))
	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(l))
}

// History handles GET /loans
// @Summary List my loans
// @Description Returns every loan of the borrower, newest first.
// @Tags Loans
// @Produce json
// @Success 200 {array} dto.LoanResponse "Loans"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [get]
// @Security BearerAuth
func (h *LoanHandler) History(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	loans, err := h.service.History(r.Context(), s.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list loans", slog.Int64("userID", s.UserID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanListResponse(loans))
}

// Current handles GET /loans/current
// @Summary Get the loan under repayment
// @Tags Loans
// @Produce json
// @Success 200 {object} dto.LoanResponse "Approved loan"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 404 {object} dto.ErrorResponse "No approved loan"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/current [get]
// @Security BearerAuth
func (h *LoanHandler) Current(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := h.service.CurrentLoan(r.Context(), s.UserID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get current loan", slog.Int64("userID", s.UserID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// Get handles GET /loans/{loanID}
// @Summary Get one of my loans
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Success 200 {object} dto.LoanResponse "Loan"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	loanID, err := getIDFromURL(r, loanIDParam)
	if err != nil {
		respondError(w, err)
		return
	}

	l, err := h.service.GetLoanForUser(r.Context(), s.UserID, loanID)
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

// Pay handles POST /loans/{loanID}/payments
// @Summary Repay a loan
// @Description EMI pays at least one instalment (or the whole smaller remainder), CUSTOM pays any amount up to the balance and FULL settles the exact balance. The loan completes when nothing remains.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Param request body dto.MakePaymentRequest true "Payment"
// @Success 201 {object} dto.PaymentResultResponse "Payment recorded"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID or payment payload"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 409 {object} dto.ErrorResponse "Loan is not under repayment"
// @Failure 422 {object} dto.ErrorResponse "Amount breaks the payment rules"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/payments [post]
// @Security BearerAuth
func (h *LoanHandler) Pay(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	loanID, err := getIDFromURL(r, loanIDParam)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.MakePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	l, p, err := h.service.Pay(r.Context(), s.UserID, loanID, req.Amount, req.Kind())
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to record payment",
			slog.Int64("loanID", loanID), slog.String("amount", req.Amount.String()), slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Payment recorded",
		slog.Int64("loanID", loanID), slog.String("reference", p.Reference), slog.String("status", string(l.Status)))
	respondJSON(w, http.StatusCreated, dto.PaymentResultResponse{
		Loan:    dto.NewLoanResponse(l),
		Payment: dto.NewPaymentResponse(p),
	})
}

// Payments handles GET /loans/{loanID}/payments
// @Summary List payments of one of my loans
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID" Minimum(1)
// @Success 200 {array} dto.PaymentResponse "Payments, oldest first"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID"
// @Failure 401 {object} dto.ErrorResponse "No valid session"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/payments [get]
// @Security BearerAuth
func (h *LoanHandler) Payments(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	loanID, err := getIDFromURL(r, loanIDParam)
	if err != nil {
		respondError(w, err)
		return
	}

	if _, err := h.service.GetLoanForUser(r.Context(), s.UserID, loanID); err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	payments, err := h.service.Payments(r.Context(), loanID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list payments", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewPaymentListResponse(payments))
}
