package dto

import (
	"miniloan/internal/domain/emi"
	"miniloan/internal/domain/quote"
	"miniloan/internal/domain/rate"
	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type CalculateEmiRequest struct {
	Principal     decimal.Decimal  `json:"principal" swaggertype:"string" example:"25000"`
	TenureMonths  int              `json:"tenureMonths" example:"12"`
	MonthlyIncome *decimal.Decimal `json:"monthlyIncome,omitempty" swaggertype:"string" example:"30000"`
}

func (r *CalculateEmiRequest) Validate() error {
	if !r.Principal.IsPositive() {
		return apperrors.NewValidationError("principal", "must be greater than zero")
	}
	if r.TenureMonths <= 0 {
		return apperrors.NewValidationError("tenureMonths", "must be positive")
	}
	if r.MonthlyIncome != nil && r.MonthlyIncome.IsNegative() {
		return apperrors.NewValidationError("monthlyIncome", "must not be negative")
	}
	return nil
}

type InstallmentResponse struct {
	Month     int    `json:"month"`
	Payment   string `json:"payment"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Balance   string `json:"balance"`
}

type QuoteResponse struct {
	Principal         string                `json:"principal"`
	TenureMonths      int                   `json:"tenureMonths"`
	MonthlyIncome     string                `json:"monthlyIncome"`
	AnnualRatePercent string                `json:"annualRatePercent"`
	MonthlyEmi        string                `json:"monthlyEmi"`
	TotalInterest     string                `json:"totalInterest"`
	TotalPayment      string                `json:"totalPayment"`
	Schedule          []InstallmentResponse `json:"schedule,omitempty"`
}

func NewQuoteResponse(q *quote.Quote) QuoteResponse {
	resp := QuoteResponse{
		Principal:         money(q.Principal),
		TenureMonths:      q.TenureMonths,
		MonthlyIncome:     money(q.MonthlyIncome),
		AnnualRatePercent: q.AnnualRatePercent.String(),
		MonthlyEmi:        money(q.MonthlyEmi),
		TotalInterest:     money(q.TotalInterest),
		TotalPayment:      money(q.TotalPayment),
	}
	if len(q.Schedule) > 0 {
		resp.Schedule = make([]InstallmentResponse, len(q.Schedule))
		for i, inst := range q.Schedule {
			resp.Schedule[i] = newInstallmentResponse(inst)
		}
	}
	return resp
}

func newInstallmentResponse(inst emi.Installment) InstallmentResponse {
	return InstallmentResponse{
		Month:     inst.Month,
		Payment:   money(inst.Payment),
		Principal: money(inst.Principal),
		Interest:  money(inst.Interest),
		Balance:   money(inst.Balance),
	}
}

type RateTierResponse struct {
	// IncomeBelow is empty for the top tier.
	IncomeBelow       *string `json:"incomeBelow,omitempty"`
	AnnualRatePercent string  `json:"annualRatePercent"`
}

type RatesResponse struct {
	Tiers           []RateTierResponse `json:"tiers"`
	MinPrincipal    string             `json:"minPrincipal"`
	MaxPrincipal    string             `json:"maxPrincipal"`
	MinTenureMonths int                `json:"minTenureMonths"`
	MaxTenureMonths int                `json:"maxTenureMonths"`
}

func NewRatesResponse(tiers []rate.Tier, limits quote.Limits) RatesResponse {
	resp := RatesResponse{
		Tiers:           make([]RateTierResponse, len(tiers)),
		MinPrincipal:    money(limits.MinPrincipal),
		MaxPrincipal:    money(limits.MaxPrincipal),
		MinTenureMonths: limits.MinTenure,
		MaxTenureMonths: limits.MaxTenure,
	}
	for i, tier := range tiers {
		resp.Tiers[i].AnnualRatePercent = tier.AnnualRatePercent.String()
		if tier.IncomeUpperBound != nil {
			b := money(*tier.IncomeUpperBound)
			resp.Tiers[i].IncomeBelow = &b
		}
	}
	return resp
}
