package handler

import (
	"log/slog"
	"net/http"

	"miniloan/internal/api/handler/dto"
	"miniloan/internal/domain/quote"
	"miniloan/internal/domain/rate"
)

type QuoteService interface {
	quote.Calculator
	Limits() quote.Limits
	Tiers() []rate.Tier
}

type EmiHandler struct {
	service QuoteService
	logger  *slog.Logger
}

func NewEmiHandler(s QuoteService, l *slog.Logger) *EmiHandler {
	if s == nil {
		panic("quote service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &EmiHandler{
		service: s,
		logger:  l.With("component", "EmiHandler"),
	}
}

// Calculate handles POST /emi/calculate
// @Summary Calculate an EMI quote
// @Description Prices a loan with the rate tier that matches the monthly income. When no income is given the configured default income is used. Add `include=schedule` for the month-by-month amortization.
// @Tags EMI
// @Accept json
// @Produce json
// @Param request body dto.CalculateEmiRequest true "Quote request"
// @Param include query string false "Use 'schedule' to include the amortization schedule"
// @Success 200 {object} dto.QuoteResponse "Quote calculated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or amount outside the allowed range"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /emi/calculate [post]
func (h *EmiHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req dto.CalculateEmiRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Quote request validation failed", slog.Any("error", err))
		respondError(w, err)
		return
	}

	q, err := h.service.Calculate(r.Context(), quote.Request{
		Principal:       req.Principal,
		TenureMonths:    req.TenureMonths,
		MonthlyIncome:   req.MonthlyIncome,
		IncludeSchedule: r.URL.Query().Get("include") == "schedule",
	})
	if err != nil {
		h.logger.Log(r.Context(), logLevelFor(err), "Service failed to calculate quote", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.DebugContext(r.Context(), "Quote calculated",
		slog.String("emi", q.MonthlyEmi.String()), slog.String("rate", q.AnnualRatePercent.String()))
	respondJSON(w, http.StatusOK, dto.NewQuoteResponse(q))
}

// Rates handles GET /emi/rates
// @Summary List interest rate tiers
// @Description Returns the income tiers with their annual rates and the accepted principal and tenure ranges.
// @Tags EMI
// @Produce json
// @Success 200 {object} dto.RatesResponse "Rate tiers"
// @Router /emi/rates [get]
func (h *EmiHandler) Rates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, dto.NewRatesResponse(h.service.Tiers(), h.service.Limits()))
}
