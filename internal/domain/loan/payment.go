package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	// PaymentTypeEMI pays at least one monthly instalment.
	PaymentTypeEMI PaymentType = "EMI"
	// PaymentTypeCustom pays any amount up to the remaining balance.
	PaymentTypeCustom PaymentType = "CUSTOM"
	// PaymentTypeFull settles the remaining balance.
	PaymentTypeFull PaymentType = "FULL"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeEMI || t == PaymentTypeCustom || t == PaymentTypeFull
}

type Payment struct {
	ID             int64
	LoanID         int64
	UserID         int64
	Amount         decimal.Decimal
	Type           PaymentType
	Reference      string
	RemainingAfter decimal.Decimal
	PaidAt         time.Time
}
