package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/store"
	"fjacquet/budget-csv/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := store.NewFileStore(t.TempDir(), logging.NewMockLogger())
		require.NoError(t, err)
		return s
	})
}

func TestFileStore_Reload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.NewFileStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateProfile(ctx, "alice"))
	require.NoError(t, s.CreateRule(ctx, "alice", models.Rule{Keyword: "starbucks", Category: "Coffee"}))
	require.NoError(t, s.SaveLearnedRules(ctx, "alice", []models.Rule{{Keyword: "ACME", Category: models.CategoryNeedsCategory}}))
	require.NoError(t, s.CreateCategory(ctx, "alice", models.NewCategory("Coffee", decimal.RequireFromString("25.5"))))
	require.NoError(t, s.CreateProfile(ctx, "bob"))
	require.NoError(t, s.DeleteProfile(ctx, "bob"))

	_, err = os.Stat(filepath.Join(dir, "profiles", "bob.yaml"))
	assert.True(t, os.IsNotExist(err))

	reloaded, err := store.NewFileStore(dir, nil)
	require.NoError(t, err)

	profiles, err := reloaded.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, profiles)

	rules, err := reloaded.ListRules(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{
		{Keyword: "STARBUCKS", Category: "Coffee"},
		{Keyword: "ACME", Category: models.CategoryNeedsCategory},
	}, rules)

	categories, err := reloaded.ListCategories(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "25.50", categories[0].Budget.StringFixed(2))
}

func TestFileStore_ProfileFileKeepsCreatedName(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.NewFileStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateProfile(ctx, "Alice"))
	require.NoError(t, s.CreateRule(ctx, "alice", models.NewRule("uber", "Transport")))
	require.NoError(t, s.SaveLearnedRules(ctx, "ALICE", []models.Rule{{Keyword: "LYFT", Category: "Transport"}}))

	files, err := filepath.Glob(filepath.Join(dir, "profiles", "*.yaml"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Alice.yaml", filepath.Base(files[0]))

	reloaded, err := store.NewFileStore(dir, nil)
	require.NoError(t, err)
	rules, err := reloaded.ListRules(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	require.NoError(t, reloaded.DeleteProfile(ctx, "aLiCe"))
	_, err = os.Stat(files[0])
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_LoadsHandWrittenProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "profiles"), 0750))
	content := `categories:
  - name: Groceries
    budget: "$400"
  - name: Fun
rules:
  - keyword: whole foods
    category: Groceries
  - keyword: WHOLE FOODS
    category: Fun
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles", "family.yaml"), []byte(content), 0600))

	logger := logging.NewMockLogger()
	s, err := store.NewFileStore(dir, logger)
	require.NoError(t, err)

	rules, err := s.ListRules(context.Background(), "family")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{{Keyword: "WHOLE FOODS", Category: "Groceries"}}, rules)
	assert.True(t, logger.HasEntry("WARN", "Ignoring invalid or duplicate rule"))

	categories, err := s.ListCategories(context.Background(), "family")
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "400.00", categories[0].Budget.StringFixed(2))
	assert.True(t, categories[1].Budget.IsZero())
}

func TestFileStore_RejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "profiles"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles", "x.yaml"), []byte("rules: [unclosed"), 0600))

	_, err := store.NewFileStore(dir, nil)
	require.Error(t, err)
}

func TestMockStore_InjectedFailure(t *testing.T) {
	m := store.NewMockStore("p", []models.Rule{{Keyword: "A", Category: "B"}}, nil)
	m.SaveLearnedRulesErr = assert.AnError

	err := m.SaveLearnedRules(context.Background(), "p", []models.Rule{{Keyword: "C", Category: "D"}})
	require.ErrorIs(t, err, assert.AnError)
	require.Len(t, m.SavedBatches, 1)

	rules, err := m.ListRules(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}
