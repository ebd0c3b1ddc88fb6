package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"
)

type profileData struct {
	name       string
	rules      []models.Rule
	categories []models.Category
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*profileData
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*profileData)}
}

func (s *MemoryStore) profile(name string) (*profileData, error) {
	p, ok := s.profiles[ProfileKey(name)]
	if !ok {
		return nil, profileNotFound(name)
	}
	return p, nil
}

func (s *MemoryStore) CreateProfile(_ context.Context, name string) error {
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ProfileKey(name)
	if _, exists := s.profiles[key]; exists {
		return &apperrors.ConflictError{Entity: "profile", Key: name}
	}
	s.profiles[key] = &profileData{name: name}
	return nil
}

func (s *MemoryStore) DeleteProfile(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ProfileKey(name)
	if _, exists := s.profiles[key]; !exists {
		return profileNotFound(name)
	}
	delete(s.profiles, key)
	return nil
}

func (s *MemoryStore) ListProfiles(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) ProfileExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.profiles[ProfileKey(name)]
	return exists, nil
}

func (s *MemoryStore) EnsureProfile(ctx context.Context, name string) error {
	if err := s.CreateProfile(ctx, name); err != nil && !isConflict(err) {
		return err
	}
	return nil
}

func (s *MemoryStore) ListRules(_ context.Context, profile string) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	out := make([]models.Rule, len(p.rules))
	copy(out, p.rules)
	return out, nil
}

func ruleIndex(rules []models.Rule, keyword string) int {
	keyword = models.NormalizeKeyword(keyword)
	for i, r := range rules {
		if r.Keyword == keyword {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) CreateRule(_ context.Context, profile string, rule models.Rule) error {
	r, err := NormalizeRule(rule)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	if ruleIndex(p.rules, r.Keyword) >= 0 {
		return &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
	}
	p.rules = append(p.rules, r)
	return nil
}

func (s *MemoryStore) RenameRule(_ context.Context, profile, keyword string, rule models.Rule) error {
	r, err := NormalizeRule(rule)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	i := ruleIndex(p.rules, keyword)
	if i < 0 {
		return &apperrors.NotFoundError{Entity: "rule", Key: models.NormalizeKeyword(keyword)}
	}
	if j := ruleIndex(p.rules, r.Keyword); j >= 0 && j != i {
		return &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
	}
	p.rules[i] = r
	return nil
}

func (s *MemoryStore) DeleteRule(_ context.Context, profile, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	i := ruleIndex(p.rules, keyword)
	if i < 0 {
		return &apperrors.NotFoundError{Entity: "rule", Key: models.NormalizeKeyword(keyword)}
	}
	p.rules = append(p.rules[:i], p.rules[i+1:]...)
	return nil
}

func (s *MemoryStore) SaveLearnedRules(_ context.Context, profile string, rules []models.Rule) error {
	normalized := make([]models.Rule, 0, len(rules))
	for _, rule := range rules {
		r, err := NormalizeRule(rule)
		if err != nil {
			return err
		}
		normalized = append(normalized, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	for _, r := range normalized {
		if i := ruleIndex(p.rules, r.Keyword); i >= 0 {
			p.rules[i].Category = r.Category
			continue
		}
		p.rules = append(p.rules, r)
	}
	return nil
}

func (s *MemoryStore) ListCategories(_ context.Context, profile string) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, len(p.categories))
	copy(out, p.categories)
	return out, nil
}

func categoryIndex(categories []models.Category, name string) int {
	key := CategoryKey(name)
	for i, c := range categories {
		if CategoryKey(c.Name) == key {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) CreateCategory(_ context.Context, profile string, category models.Category) error {
	c, err := NormalizeCategory(category)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	if categoryIndex(p.categories, c.Name) >= 0 {
		return &apperrors.ConflictError{Entity: "category", Key: c.Name}
	}
	p.categories = append(p.categories, c)
	return nil
}

func (s *MemoryStore) UpdateCategory(_ context.Context, profile, name string, category models.Category) error {
	c, err := NormalizeCategory(category)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	i := categoryIndex(p.categories, name)
	if i < 0 {
		return &apperrors.NotFoundError{Entity: "category", Key: name}
	}
	if j := categoryIndex(p.categories, c.Name); j >= 0 && j != i {
		return &apperrors.ConflictError{Entity: "category", Key: c.Name}
	}
	p.categories[i] = c
	return nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, profile, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	i := categoryIndex(p.categories, name)
	if i < 0 {
		return &apperrors.NotFoundError{Entity: "category", Key: name}
	}
	p.categories = append(p.categories[:i], p.categories[i+1:]...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// snapshot returns a deep copy of one profile, used by FileStore.
func (s *MemoryStore) snapshot(name string) (profileData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[ProfileKey(name)]
	if !ok {
		return profileData{}, false
	}
	return profileData{
		name:       p.name,
		rules:      append([]models.Rule(nil), p.rules...),
		categories: append([]models.Category(nil), p.categories...),
	}, true
}

// restore replaces one profile wholesale, used by FileStore when loading.
func (s *MemoryStore) restore(name string, data profileData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data.name = name
	s.profiles[ProfileKey(name)] = &data
}

func isConflict(err error) bool {
	return errors.Is(err, apperrors.ErrConflict)
}
