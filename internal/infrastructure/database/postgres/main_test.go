package postgres

import (
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
)

const pgxmockExpectationsNotMetMsg = "there were unfulfilled expectations"

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
