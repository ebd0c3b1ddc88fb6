// Package models provides the data structures used throughout the application.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one cleaned row of a card export.
//
// Amount is signed: a negative value is money spent, a positive value is
// money returned to the card (refunds, payments).
type Transaction struct {
	// Row is the 1-based data row number in the source file, header excluded.
	Row            int             `json:"row" yaml:"row"`
	Date           time.Time       `json:"date" yaml:"date"`
	RawDescription string          `json:"raw_description" yaml:"raw_description"`
	Description    string          `json:"description" yaml:"description"`
	Keyword        string          `json:"keyword" yaml:"keyword"`
	Amount         decimal.Decimal `json:"amount" yaml:"amount"`
	Category       string          `json:"category" yaml:"category"`

	// Record holds the original CSV fields so output keeps every column.
	Record []string `json:"-" yaml:"-"`
}

// IsDebit reports whether the transaction spends money.
func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// Spent returns the amount counted against a budget. Credits yield a
// negative spend.
func (t Transaction) Spent() decimal.Decimal {
	return t.Amount.Neg()
}

// IsCategorized reports whether the transaction carries a category.
func (t Transaction) IsCategorized() bool {
	return t.Category != ""
}
