package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/store"
	"fjacquet/budget-csv/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "budget.db"), logging.NewMockLogger())
		require.NoError(t, err)
		return s
	})
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "budget.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateProfile(ctx, "alice"))
	require.NoError(t, s.SaveLearnedRules(ctx, "alice", []models.Rule{
		{Keyword: "STARBUCKS", Category: "Coffee"},
		{Keyword: "ACME", Category: models.CategoryNeedsCategory},
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	rules, err := reopened.ListRules(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.Rule{
		{Keyword: "STARBUCKS", Category: "Coffee"},
		{Keyword: "ACME", Category: models.CategoryNeedsCategory},
	}, rules)
}
