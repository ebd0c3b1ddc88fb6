package budget

import (
	"testing"

	"fjacquet/budget-csv/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(category, amount string) models.Transaction {
	return models.Transaction{Category: category, Amount: d(amount)}
}

var categories = []models.Category{
	{Name: "Groceries", Budget: d("400")},
	{Name: "Coffee", Budget: d("30")},
	{Name: "Travel", Budget: d("0")},
}

func TestSummarize(t *testing.T) {
	txs := []models.Transaction{
		tx("Coffee", "-5.50"),
		tx("coffee", "-4.50"),
		tx("Groceries", "-120.25"),
		tx("Groceries", "20.25"),
		tx(models.CategoryNeedsCategory, "-9.99"),
		tx("Books", "-12.00"),
	}

	s := Summarize(txs, categories)

	names := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		names = append(names, l.Category)
	}
	assert.Equal(t, []string{"Groceries", "Coffee", "Travel", "Books", models.CategoryNeedsCategory}, names)

	coffee, ok := s.Line("COFFEE")
	require.True(t, ok)
	assert.Equal(t, "10.00", coffee.Spent.StringFixed(2))
	assert.Equal(t, "20.00", coffee.Remaining.StringFixed(2))
	assert.Equal(t, 2, coffee.Count)

	groceries, _ := s.Line("Groceries")
	assert.Equal(t, "100.00", groceries.Spent.StringFixed(2))
	assert.Equal(t, "300.00", groceries.Remaining.StringFixed(2))

	travel, _ := s.Line("Travel")
	assert.True(t, travel.Spent.IsZero())
	assert.Equal(t, 0, travel.Count)

	books, _ := s.Line("Books")
	assert.False(t, books.Configured)
	assert.True(t, books.Budget.IsZero())
	assert.Equal(t, "-12.00", books.Remaining.StringFixed(2))

	assert.Equal(t, "131.99", s.TotalSpent.StringFixed(2))
	assert.Equal(t, "430.00", s.TotalBudget.StringFixed(2))
	assert.Equal(t, "298.01", s.TotalRemaining.StringFixed(2))
	assert.Equal(t, 6, s.Transactions)
}

func TestSummarize_SpentMatchesAmounts(t *testing.T) {
	txs := []models.Transaction{
		tx("A", "-1.10"), tx("B", "-2.20"), tx("A", "0.30"), tx("", "-4.00"), tx("C", "-0.01"),
	}

	var sum decimal.Decimal
	for _, x := range txs {
		sum = sum.Add(x.Amount)
	}

	s := Summarize(txs, categories)
	var spent decimal.Decimal
	for _, l := range s.Lines {
		spent = spent.Add(l.Spent)
	}
	assert.True(t, spent.Equal(sum.Neg()), "spent %s, amounts %s", spent, sum)
	assert.True(t, s.TotalSpent.Equal(spent))

	uncategorized, ok := s.Line(models.CategoryUncategorized)
	require.True(t, ok)
	assert.Equal(t, "4.00", uncategorized.Spent.StringFixed(2))
}

func TestSummarize_Idempotent(t *testing.T) {
	txs := []models.Transaction{tx("Coffee", "-3"), tx("Zoo", "-1"), tx("Art", "-2")}
	cats := append([]models.Category(nil), categories...)

	first := Summarize(txs, cats)
	second := Summarize(txs, cats)
	assert.Equal(t, first, second)
	assert.Equal(t, categories, cats)
	assert.Equal(t, "Coffee", txs[0].Category)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Empty(t, s.Lines)
	assert.True(t, s.TotalSpent.IsZero())
	assert.True(t, s.TotalRemaining.IsZero())
}

func TestSummary_OverBudget(t *testing.T) {
	s := Summarize([]models.Transaction{
		tx("Coffee", "-45"),
		tx("Travel", "-100"),
		tx("Groceries", "-10"),
	}, categories)

	over := s.OverBudget()
	require.Len(t, over, 1)
	assert.Equal(t, "Coffee", over[0].Category)
	assert.Equal(t, "-15.00", over[0].Remaining.StringFixed(2))
}
