package cleaner

import (
	"fmt"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"

	"github.com/shopspring/decimal"
)

// amount resolves the signed amount of a row. A signed Amount column wins
// when configured; otherwise a Debit value is money spent (negated) and a
// Credit value is money returned.
func (c *Cleaner) amount(row int, rawAmount, rawDebit, rawCredit string, l layout) (decimal.Decimal, bool, error) {
	if l.amount >= 0 {
		d, err := models.ParseAmount(rawAmount)
		if err != nil {
			return decimal.Zero, false, &apperrors.ParseError{Row: row, Field: "amount", Value: rawAmount, Err: err}
		}
		return d, d.IsPositive(), nil
	}

	if rawDebit != "" {
		d, err := models.ParseAmount(rawDebit)
		if err != nil {
			return decimal.Zero, false, &apperrors.ParseError{Row: row, Field: "debit", Value: rawDebit, Err: err}
		}
		return d.Abs().Neg(), false, nil
	}

	if rawCredit != "" && l.credit >= 0 {
		d, err := models.ParseAmount(rawCredit)
		if err != nil {
			return decimal.Zero, false, &apperrors.ParseError{Row: row, Field: "credit", Value: rawCredit, Err: err}
		}
		return d.Abs(), true, nil
	}

	return decimal.Zero, false, &apperrors.ParseError{Row: row, Field: "amount", Err: fmt.Errorf("no debit or credit value")}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
