package store

import (
	"context"

	"fjacquet/budget-csv/internal/models"
)

// MockStore wraps a MemoryStore and lets tests inject failures.
type MockStore struct {
	*MemoryStore

	// Error flags for testing error conditions
	ListRulesErr        error
	ListCategoriesErr   error
	SaveLearnedRulesErr error
	EnsureProfileErr    error

	// SavedBatches records every batch passed to SaveLearnedRules.
	SavedBatches [][]models.Rule
}

// NewMockStore creates a MockStore seeded with one profile holding rules
// and categories.
func NewMockStore(profile string, rules []models.Rule, categories []models.Category) *MockStore {
	m := &MockStore{MemoryStore: NewMemoryStore()}
	ctx := context.Background()
	if profile == "" {
		return m
	}
	_ = m.MemoryStore.CreateProfile(ctx, profile)
	for _, r := range rules {
		_ = m.MemoryStore.CreateRule(ctx, profile, r)
	}
	for _, c := range categories {
		_ = m.MemoryStore.CreateCategory(ctx, profile, c)
	}
	return m
}

func (m *MockStore) EnsureProfile(ctx context.Context, name string) error {
	if m.EnsureProfileErr != nil {
		return m.EnsureProfileErr
	}
	return m.MemoryStore.EnsureProfile(ctx, name)
}

func (m *MockStore) ListRules(ctx context.Context, profile string) ([]models.Rule, error) {
	if m.ListRulesErr != nil {
		return nil, m.ListRulesErr
	}
	return m.MemoryStore.ListRules(ctx, profile)
}

func (m *MockStore) ListCategories(ctx context.Context, profile string) ([]models.Category, error) {
	if m.ListCategoriesErr != nil {
		return nil, m.ListCategoriesErr
	}
	return m.MemoryStore.ListCategories(ctx, profile)
}

func (m *MockStore) SaveLearnedRules(ctx context.Context, profile string, rules []models.Rule) error {
	m.MemoryStore.mu.Lock()
	m.SavedBatches = append(m.SavedBatches, append([]models.Rule(nil), rules...))
	m.MemoryStore.mu.Unlock()
	if m.SaveLearnedRulesErr != nil {
		return m.SaveLearnedRulesErr
	}
	return m.MemoryStore.SaveLearnedRules(ctx, profile, rules)
}
