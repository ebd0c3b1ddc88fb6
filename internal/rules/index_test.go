package rules

import (
	"errors"
	"testing"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex_DropsEmptyAndDuplicates(t *testing.T) {
	idx := NewIndex([]models.Rule{
		{Keyword: "starbucks", Category: "Coffee"},
		{Keyword: "  ", Category: "Ignored"},
		{Keyword: "STARBUCKS", Category: "Other"},
		{Keyword: "shell", Category: ""},
	})

	rules := idx.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, models.Rule{Keyword: "STARBUCKS", Category: "Coffee"}, rules[0])
	assert.Equal(t, models.Rule{Keyword: "SHELL", Category: models.CategoryUncategorized}, rules[1])
}

func TestMatch_CaseInsensitiveSubstring(t *testing.T) {
	idx := NewIndex([]models.Rule{{Keyword: "STARBUCKS", Category: "Coffee"}})

	for _, desc := range []string{"starbucks #123", "STARBUCKS", "Paid at Starbucks Seattle"} {
		r, ok := idx.Match(desc)
		assert.True(t, ok, desc)
		assert.Equal(t, "Coffee", r.Category)
	}

	_, ok := idx.Match("PEET'S COFFEE")
	assert.False(t, ok)
	_, ok = idx.Match("")
	assert.False(t, ok)
}

func TestMatch_InsertionOrderWins(t *testing.T) {
	idx := NewIndex([]models.Rule{
		{Keyword: "AMAZON", Category: "Shopping"},
		{Keyword: "AMAZON PRIME", Category: "Subscription"},
	})

	r, ok := idx.Match("AMAZON PRIME MEMBERSHIP")
	require.True(t, ok)
	assert.Equal(t, "Shopping", r.Category)
}

func TestMatch_AnyText(t *testing.T) {
	idx := NewIndex([]models.Rule{
		{Keyword: "7-ELEVEN", Category: "Gas"},
		{Keyword: "ELEVEN", Category: "Other"},
	})

	r, ok := idx.Match("-ELEVEN", "7-ELEVEN 3312")
	require.True(t, ok)
	assert.Equal(t, "Gas", r.Category)
}

func TestAdd(t *testing.T) {
	idx := NewIndex(nil)

	r, err := idx.Add("uber eats", "Eating Out")
	require.NoError(t, err)
	assert.Equal(t, "UBER EATS", r.Keyword)

	_, err = idx.Add("Uber Eats", "Fun")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	got, ok := idx.Lookup("uber eats")
	require.True(t, ok)
	assert.Equal(t, "Eating Out", got.Category, "index unchanged after conflict")
	assert.Equal(t, 1, idx.Len())

	_, err = idx.Add("", "Fun")
	assert.True(t, errors.Is(err, apperrors.ErrInvalid))
}

func TestUpsert(t *testing.T) {
	idx := NewIndex([]models.Rule{
		{Keyword: "ACME", Category: models.CategoryNeedsCategory},
		{Keyword: "SHELL", Category: "Gas"},
	})

	r, created, err := idx.Upsert("acme", "Repairs")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Repairs", r.Category)
	assert.Equal(t, "ACME", idx.Rules()[0].Keyword, "position kept")

	_, created, err = idx.Upsert("target", "Groceries")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 3, idx.Len())
}

func TestRemove(t *testing.T) {
	idx := NewIndex([]models.Rule{
		{Keyword: "A", Category: "1"},
		{Keyword: "B", Category: "2"},
		{Keyword: "C", Category: "3"},
	})

	require.NoError(t, idx.Remove("b"))
	assert.Equal(t, []models.Rule{{Keyword: "A", Category: "1"}, {Keyword: "C", Category: "3"}}, idx.Rules())

	got, ok := idx.Lookup("C")
	require.True(t, ok)
	assert.Equal(t, "3", got.Category)

	err := idx.Remove("B")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRename(t *testing.T) {
	idx := NewIndex([]models.Rule{
		{Keyword: "STARBUX", Category: "Coffee"},
		{Keyword: "SHELL", Category: "Gas"},
	})

	r, err := idx.Rename("starbux", "starbucks", "Coffee")
	require.NoError(t, err)
	assert.Equal(t, "STARBUCKS", r.Keyword)
	assert.Equal(t, "STARBUCKS", idx.Rules()[0].Keyword)
	_, ok := idx.Lookup("STARBUX")
	assert.False(t, ok)

	_, err = idx.Rename("STARBUCKS", "shell", "Coffee")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, err = idx.Rename("missing", "other", "Coffee")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	// Renaming to the same keyword only changes the category.
	r, err = idx.Rename("SHELL", "Shell", "Fuel")
	require.NoError(t, err)
	assert.Equal(t, "Fuel", r.Category)
}

func TestRules_ReturnsCopy(t *testing.T) {
	idx := NewIndex([]models.Rule{{Keyword: "A", Category: "1"}})
	rules := idx.Rules()
	rules[0].Category = "mutated"
	got, _ := idx.Lookup("A")
	assert.Equal(t, "1", got.Category)
}
