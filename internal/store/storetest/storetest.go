// Package storetest runs the behaviour every store.Store implementation must
// share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the shared store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Profiles", testProfiles},
		{"ProfileNamesIgnoreCase", testProfileCase},
		{"RulesKeepCreationOrder", testRulesOrder},
		{"RuleConflictsAndMissing", testRuleErrors},
		{"RenameRuleKeepsPosition", testRenameRule},
		{"SaveLearnedRulesUpserts", testSaveLearnedRules},
		{"Categories", testCategories},
		{"DeleteProfileCascades", testDeleteCascade},
		{"MissingProfile", testMissingProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func isKind(t *testing.T, err, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func testProfiles(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, "bob"))
	require.NoError(t, s.CreateProfile(ctx, "alice"))
	isKind(t, s.CreateProfile(ctx, "alice"), apperrors.ErrConflict)
	isKind(t, s.CreateProfile(ctx, "../etc"), apperrors.ErrInvalid)

	names, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	exists, err := s.ProfileExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.EnsureProfile(ctx, "alice"))
	require.NoError(t, s.EnsureProfile(ctx, "carol"))
	exists, err = s.ProfileExists(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteProfile(ctx, "bob"))
	isKind(t, s.DeleteProfile(ctx, "bob"), apperrors.ErrNotFound)
	exists, err = s.ProfileExists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testProfileCase(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, "Alice"))
	isKind(t, s.CreateProfile(ctx, "alice"), apperrors.ErrConflict)
	require.NoError(t, s.EnsureProfile(ctx, "ALICE"))

	names, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names)

	require.NoError(t, s.CreateRule(ctx, "alice", models.NewRule("uber", "Transport")))
	rules, err := s.ListRules(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{{Keyword: "UBER", Category: "Transport"}}, rules)

	exists, err := s.ProfileExists(ctx, "aLiCe")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteProfile(ctx, "alice"))
	names, err = s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testRulesOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, "p"))

	require.NoError(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "zeta", Category: "Z"}))
	require.NoError(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "alpha", Category: "A"}))
	require.NoError(t, s.CreateRule(ctx, "p", models.Rule{Keyword: " Mid ", Category: "M"}))

	rules, err := s.ListRules(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{
		{Keyword: "ZETA", Category: "Z"},
		{Keyword: "ALPHA", Category: "A"},
		{Keyword: "MID", Category: "M"},
	}, rules)
}

func testRuleErrors(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, "p"))
	require.NoError(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "SHELL", Category: "Gas"}))

	isKind(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "shell", Category: "Other"}), apperrors.ErrConflict)
	isKind(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "  ", Category: "Other"}), apperrors.ErrInvalid)
	isKind(t, s.DeleteRule(ctx, "p", "CHEVRON"), apperrors.ErrNotFound)
	isKind(t, s.RenameRule(ctx, "p", "CHEVRON", models.Rule{Keyword: "X", Category: "Y"}), apperrors.ErrNotFound)

	rules, err := s.ListRules(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{{Keyword: "SHELL", Category: "Gas"}}, rules)

	require.NoError(t, s.DeleteRule(ctx, "p", "shell"))
	rules, err = s.ListRules(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func testRenameRule(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, "p"))
	for _, r := range []models.Rule{{Keyword: "A", Category: "1"}, {Keyword: "B", Category: "2"}, {Keyword: "C", Category: "3"}} {
		require.NoError(t, s.CreateRule(ctx, "p", r))
	}

	isKind(t, s.RenameRule(ctx, "p", "A", models.Rule{Keyword: "c", Category: "x"}), apperrors.ErrConflict)
	require.NoError(t, s.RenameRule(ctx, "p", "a", models.Rule{Keyword: "A2", Category: "one"}))
	require.NoError(t, s.RenameRule(ctx, "p", "B", models.Rule{Keyword: "B", Category: "two"}))

	rules, err := s.ListRules(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{
		{Keyword: "A2", Category: "one"},
		{Keyword: "B", Category: "two"},
		{Keyword: "C", Category: "3"},
	}, rules)
}

func testSaveLearnedRules(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, "p"))
	require.NoError(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "NETFLIX", Category: models.CategoryNeedsCategory}))

	require.NoError(t, s.SaveLearnedRules(ctx, "p", []models.Rule{
		{Keyword: "STARBUCKS", Category: "Coffee"},
		{Keyword: "netflix", Category: "Subscription"},
		{Keyword: "ACME", Category: models.CategoryNeedsCategory},
	}))
	require.NoError(t, s.SaveLearnedRules(ctx, "p", nil))

	rules, err := s.ListRules(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{
		{Keyword: "NETFLIX", Category: "Subscription"},
		{Keyword: "STARBUCKS", Category: "Coffee"},
		{Keyword: "ACME", Category: models.CategoryNeedsCategory},
	}, rules)
}

func testCategories(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, "p"))

	require.NoError(t, s.CreateCategory(ctx, "p", models.NewCategory("Groceries", decimal.NewFromInt(400))))
	require.NoError(t, s.CreateCategory(ctx, "p", models.NewCategory("Coffee", decimal.RequireFromString("30.50"))))
	isKind(t, s.CreateCategory(ctx, "p", models.NewCategory("groceries", decimal.Zero)), apperrors.ErrConflict)
	isKind(t, s.CreateCategory(ctx, "p", models.NewCategory("Bad", decimal.NewFromInt(-1))), apperrors.ErrInvalid)

	isKind(t, s.UpdateCategory(ctx, "p", "Rent", models.NewCategory("Rent", decimal.Zero)), apperrors.ErrNotFound)
	isKind(t, s.UpdateCategory(ctx, "p", "Coffee", models.NewCategory("GROCERIES", decimal.Zero)), apperrors.ErrConflict)
	require.NoError(t, s.UpdateCategory(ctx, "p", "coffee", models.NewCategory("Cafes", decimal.NewFromInt(45))))

	categories, err := s.ListCategories(ctx, "p")
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Groceries", categories[0].Name)
	assert.True(t, categories[0].Budget.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, "Cafes", categories[1].Name)
	assert.True(t, categories[1].Budget.Equal(decimal.NewFromInt(45)))

	isKind(t, s.DeleteCategory(ctx, "p", "Coffee"), apperrors.ErrNotFound)
	require.NoError(t, s.DeleteCategory(ctx, "p", "CAFES"))
	categories, err = s.ListCategories(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries"}, models.CategoryNames(categories))
}

func testDeleteCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, "p"))
	require.NoError(t, s.CreateRule(ctx, "p", models.Rule{Keyword: "A", Category: "B"}))
	require.NoError(t, s.CreateCategory(ctx, "p", models.NewCategory("B", decimal.Zero)))

	require.NoError(t, s.DeleteProfile(ctx, "p"))
	require.NoError(t, s.CreateProfile(ctx, "p"))

	rules, err := s.ListRules(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, rules)
	categories, err := s.ListCategories(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func testMissingProfile(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.ListRules(ctx, "ghost")
	isKind(t, err, apperrors.ErrNotFound)
	_, err = s.ListCategories(ctx, "ghost")
	isKind(t, err, apperrors.ErrNotFound)
	isKind(t, s.CreateRule(ctx, "ghost", models.Rule{Keyword: "A", Category: "B"}), apperrors.ErrNotFound)
	isKind(t, s.SaveLearnedRules(ctx, "ghost", []models.Rule{{Keyword: "A", Category: "B"}}), apperrors.ErrNotFound)
	isKind(t, s.CreateCategory(ctx, "ghost", models.NewCategory("B", decimal.Zero)), apperrors.ErrNotFound)
	isKind(t, s.DeleteRule(ctx, "ghost", "A"), apperrors.ErrNotFound)
	isKind(t, s.DeleteCategory(ctx, "ghost", "B"), apperrors.ErrNotFound)
}
