package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is a named budget bucket owned by a profile.
type Category struct {
	Name   string          `json:"name" yaml:"name"`
	Budget decimal.Decimal `json:"budget" yaml:"budget"`
}

// NewCategory creates a category with a trimmed name.
func NewCategory(name string, budget decimal.Decimal) Category {
	return Category{Name: strings.TrimSpace(name), Budget: budget}
}

// SameName compares category or profile names case-insensitively.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CategoryNames returns the names of the given categories in order.
func CategoryNames(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}

// DefaultCategories returns the starter set offered to new profiles.
func DefaultCategories() []Category {
	seed := []struct {
		name   string
		budget int64
	}{
		{"Eating Out", 500},
		{"Groceries", 500},
		{"Rent", 1900},
		{"Public Transportation", 100},
		{"Repairs", 0},
		{"Gas", 50},
		{"Doctor's Office", 0},
		{"Prescriptions", 200},
		{"Fun", 600},
		{"Going Out", 500},
		{"Gifts", 100},
		{CategoryUncategorized, 0},
		{"Discretionary", 0},
		{"Subscription", 100},
	}

	categories := make([]Category, 0, len(seed))
	for _, s := range seed {
		categories = append(categories, NewCategory(s.name, decimal.NewFromInt(s.budget)))
	}
	return categories
}
