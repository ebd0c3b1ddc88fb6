package models

import "strings"

// Rule maps a description keyword to a category name. Keywords are stored
// upper-cased and matched as substrings.
type Rule struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Category string `json:"category" yaml:"category"`
}

// NewRule builds a rule with a normalized keyword. An empty category
// falls back to CategoryUncategorized.
func NewRule(keyword, category string) Rule {
	category = strings.TrimSpace(category)
	if category == "" {
		category = CategoryUncategorized
	}
	return Rule{
		Keyword:  NormalizeKeyword(keyword),
		Category: category,
	}
}

// NormalizeKeyword upper-cases and trims a keyword.
func NormalizeKeyword(keyword string) string {
	return strings.ToUpper(strings.TrimSpace(keyword))
}
