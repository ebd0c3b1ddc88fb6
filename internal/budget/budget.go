// Package budget aggregates categorized spending against per-category budgets.
package budget

import (
	"sort"
	"strings"

	"fjacquet/budget-csv/internal/models"

	"github.com/shopspring/decimal"
)

// Line is the spending of one category.
type Line struct {
	Category  string          `json:"category" yaml:"category"`
	Spent     decimal.Decimal `json:"spent" yaml:"spent"`
	Budget    decimal.Decimal `json:"budget" yaml:"budget"`
	Remaining decimal.Decimal `json:"remaining" yaml:"remaining"`
	Count     int             `json:"count" yaml:"count"`
	// Configured is false for categories found on transactions but missing
	// from the profile.
	Configured bool `json:"configured" yaml:"configured"`
}

// Summary is the per-category breakdown of a run.
type Summary struct {
	Lines          []Line          `json:"lines" yaml:"lines"`
	TotalSpent     decimal.Decimal `json:"total_spent" yaml:"total_spent"`
	TotalBudget    decimal.Decimal `json:"total_budget" yaml:"total_budget"`
	TotalRemaining decimal.Decimal `json:"total_remaining" yaml:"total_remaining"`
	Transactions   int             `json:"transactions" yaml:"transactions"`
}

// Summarize sums spending per category. Every configured category gets a
// line, in the given order, even without transactions; categories only seen
// on transactions follow alphabetically with a zero budget. Category names
// are compared case-insensitively.
//
// Summarize does not modify its inputs and the sum of Spent over all lines
// equals the negated sum of the transaction amounts.
func Summarize(txs []models.Transaction, categories []models.Category) Summary {
	lines := make([]Line, 0, len(categories))
	pos := make(map[string]int, len(categories))

	for _, c := range categories {
		key := foldName(c.Name)
		if _, dup := pos[key]; dup {
			continue
		}
		pos[key] = len(lines)
		lines = append(lines, Line{Category: c.Name, Budget: c.Budget, Configured: true})
	}
	configured := len(lines)

	for _, tx := range txs {
		name := tx.Category
		if strings.TrimSpace(name) == "" {
			name = models.CategoryUncategorized
		}
		key := foldName(name)
		i, ok := pos[key]
		if !ok {
			i = len(lines)
			pos[key] = i
			lines = append(lines, Line{Category: name})
		}
		lines[i].Spent = lines[i].Spent.Add(tx.Spent())
		lines[i].Count++
	}

	extra := lines[configured:]
	sort.SliceStable(extra, func(a, b int) bool {
		return foldName(extra[a].Category) < foldName(extra[b].Category)
	})

	s := Summary{Lines: lines, Transactions: len(txs)}
	for i := range s.Lines {
		l := &s.Lines[i]
		l.Remaining = l.Budget.Sub(l.Spent)
		s.TotalSpent = s.TotalSpent.Add(l.Spent)
		s.TotalBudget = s.TotalBudget.Add(l.Budget)
	}
	s.TotalRemaining = s.TotalBudget.Sub(s.TotalSpent)
	return s
}

// Line returns the line for category, if any.
func (s Summary) Line(category string) (Line, bool) {
	key := foldName(category)
	for _, l := range s.Lines {
		if foldName(l.Category) == key {
			return l, true
		}
	}
	return Line{}, false
}

// OverBudget returns the configured lines whose spending exceeds a
// non-zero budget.
func (s Summary) OverBudget() []Line {
	var out []Line
	for _, l := range s.Lines {
		if l.Configured && l.Budget.IsPositive() && l.Remaining.IsNegative() {
			out = append(out, l)
		}
	}
	return out
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
