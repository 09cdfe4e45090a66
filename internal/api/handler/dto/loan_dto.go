package dto

import (
	"strings"
	"time"

	"miniloan/internal/domain/loan"
	"miniloan/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type ApplyLoanRequest struct {
	Amount       decimal.Decimal `json:"amount" swaggertype:"string" example:"25000"`
	TenureMonths int             `json:"tenureMonths" example:"12"`
}

func (r *ApplyLoanRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if r.TenureMonths <= 0 {
		return apperrors.NewValidationError("tenureMonths", "must be positive")
	}
	return nil
}

type MakePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"2221.22"`
	PaymentType string          `json:"paymentType" enums:"EMI,CUSTOM,FULL" example:"EMI"`
}

// Kind defaults to an EMI payment when no type is given.
func (r *MakePaymentRequest) Kind() loan.PaymentType {
	if strings.TrimSpace(r.PaymentType) == "" {
		return loan.PaymentTypeEMI
	}
	return loan.PaymentType(strings.ToUpper(strings.TrimSpace(r.PaymentType)))
}

func (r *MakePaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if !r.Kind().Valid() {
		return apperrors.NewValidationError("paymentType", "must be one of EMI, CUSTOM, FULL")
	}
	return nil
}

type LoanResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	Amount          string     `json:"amount"`
	TenureMonths    int        `json:"tenureMonths"`
	InterestRate    string     `json:"interestRate"`
	Emi             string     `json:"emi"`
	TotalPayable    string     `json:"totalPayable"`
	PaidAmount      string     `json:"paidAmount"`
	RemainingAmount string     `json:"remainingAmount"`
	Status          string     `json:"status"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	return LoanResponse{
		ID:              l.ID,
		UserID:          l.UserID,
		Amount:          money(l.Amount),
		TenureMonths:    l.TenureMonths,
		InterestRate:    l.InterestRate.String(),
		Emi:             money(l.Emi),
		TotalPayable:    money(l.TotalPayable),
		PaidAmount:      money(l.PaidAmount),
		RemainingAmount: money(l.RemainingAmount),
		Status:          string(l.Status),
		StartDate:       optionalTime(l.StartDate),
		EndDate:         optionalTime(l.EndDate),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func NewLoanListResponse(loans []*loan.Loan) []LoanResponse {
	out := make([]LoanResponse, len(loans))
	for i, l := range loans {
		out[i] = NewLoanResponse(l)
	}
	return out
}

type PaymentResponse struct {
	ID             int64     `json:"id"`
	LoanID         int64     `json:"loanId"`
	Amount         string    `json:"amount"`
	PaymentType    string    `json:"paymentType"`
	Reference      string    `json:"reference"`
	RemainingAfter string    `json:"remainingAfter"`
	PaidAt         time.Time `json:"paidAt"`
}

func NewPaymentResponse(p *loan.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		LoanID:         p.LoanID,
		Amount:         money(p.Amount),
		PaymentType:    string(p.Type),
		Reference:      p.Reference,
		RemainingAfter: money(p.RemainingAfter),
		PaidAt:         p.PaidAt,
	}
}

func NewPaymentListResponse(payments []*loan.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = NewPaymentResponse(p)
	}
	return out
}

type PaymentResultResponse struct {
	Loan    LoanResponse    `json:"loan"`
	Payment PaymentResponse `json:"payment"`
}
