package event

import (
	"time"

	"github.com/shopspring/decimal"
)

type Topic string

const (
	TopicSessionStarted  Topic = "session.started"
	TopicSessionEnded    Topic = "session.ended"
	TopicLoanApplied     Topic = "loan.applied"
	TopicLoanApproved    Topic = "loan.approved"
	TopicLoanRejected    Topic = "loan.rejected"
	TopicPaymentReceived Topic = "loan.payment_received"
	TopicLoanCompleted   Topic = "loan.completed"
)

// LoanTopics are the topics forwarded to the message broker.
var LoanTopics = []Topic{
	TopicLoanApplied,
	TopicLoanApproved,
	TopicLoanRejected,
	TopicPaymentReceived,
	TopicLoanCompleted,
}

type Event struct {
	Topic      Topic
	OccurredAt time.Time
	Payload    any
}

type SessionEvent struct {
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LoanEvent struct {
	LoanID           int64           `json:"loanId"`
	UserID           int64           `json:"userId"`
	Email            string          `json:"email,omitempty"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Emi              decimal.Decimal `json:"emi"`
	TotalPayable     decimal.Decimal `json:"totalPayable"`
	PaidAmount       decimal.Decimal `json:"paidAmount"`
	RemainingAmount  decimal.Decimal `json:"remainingAmount"`
	PaymentAmount    decimal.Decimal `json:"paymentAmount"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}
