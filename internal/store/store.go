// Package store defines persistence for profiles and their rules and
// categories, with in-memory and YAML file implementations. SQL backends
// live in the sqlite and postgres subpackages.
//
// Every implementation follows the same contract:
//   - rules are listed in creation order; renaming keeps a rule's position
//   - keywords are compared upper-cased, profile and category names
//     case-insensitively
//   - creating a duplicate returns an apperrors.ConflictError
//   - touching a missing profile, rule or category returns an
//     apperrors.NotFoundError
package store

import (
	"context"
	"regexp"
	"strings"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"
)

// ProfileStore manages profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, name string) error
	// DeleteProfile removes a profile with its rules and categories.
	DeleteProfile(ctx context.Context, name string) error
	ListProfiles(ctx context.Context) ([]string, error)
	ProfileExists(ctx context.Context, name string) (bool, error)
	// EnsureProfile creates the profile when it does not exist yet.
	EnsureProfile(ctx context.Context, name string) error
}

// RuleStore manages keyword rules of a profile.
type RuleStore interface {
	ListRules(ctx context.Context, profile string) ([]models.Rule, error)
	CreateRule(ctx context.Context, profile string, rule models.Rule) error
	// RenameRule replaces the rule stored under keyword with rule.
	RenameRule(ctx context.Context, profile, keyword string, rule models.Rule) error
	DeleteRule(ctx context.Context, profile, keyword string) error
	// SaveLearnedRules upserts rules in one write: new keywords are
	// appended in order, existing ones get the new category.
	SaveLearnedRules(ctx context.Context, profile string, rules []models.Rule) error
}

// CategoryStore manages budget categories of a profile.
type CategoryStore interface {
	ListCategories(ctx context.Context, profile string) ([]models.Category, error)
	CreateCategory(ctx context.Context, profile string, category models.Category) error
	// UpdateCategory replaces the category stored under name, which may
	// rename it.
	UpdateCategory(ctx context.Context, profile, name string, category models.Category) error
	DeleteCategory(ctx context.Context, profile, name string) error
}

// Store is the full persistence interface.
type Store interface {
	ProfileStore
	RuleStore
	CategoryStore
	Close() error
}

var profileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateProfileName checks a profile name. Names end up in file names,
// so only letters, digits, '.', '_' and '-' are allowed.
func ValidateProfileName(name string) error {
	if !profileName.MatchString(name) {
		return &apperrors.ValidationError{Field: "profile", Reason: "use 1-64 letters, digits, '.', '_' or '-'"}
	}
	return nil
}

// NormalizeRule validates and normalizes a rule before it is stored.
func NormalizeRule(rule models.Rule) (models.Rule, error) {
	r := models.NewRule(rule.Keyword, rule.Category)
	if r.Keyword == "" {
		return r, &apperrors.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}
	return r, nil
}

// NormalizeCategory validates and normalizes a category before it is stored.
func NormalizeCategory(category models.Category) (models.Category, error) {
	c := models.NewCategory(category.Name, category.Budget)
	if c.Name == "" {
		return c, &apperrors.ValidationError{Field: "category", Reason: "name must not be empty"}
	}
	if c.Budget.IsNegative() {
		return c, &apperrors.ValidationError{Field: "budget", Reason: "must not be negative"}
	}
	return c, nil
}

// ProfileKey is the comparison key of a profile name. Profile names are
// unique ignoring case.
func ProfileKey(name string) string {
	return strings.ToLower(name)
}

// CategoryKey is the comparison key of a category name.
func CategoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func profileNotFound(name string) error {
	return &apperrors.NotFoundError{Entity: "profile", Key: name}
}
