package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileStore persists each profile as a YAML document under
// <dir>/profiles/<name>.yaml. Reads are served from memory.
type FileStore struct {
	*MemoryStore
	dir    string
	logger logging.Logger
	saveMu sync.Mutex
}

type profileDoc struct {
	Profile    string        `yaml:"profile"`
	Categories []categoryDoc `yaml:"categories"`
	Rules      []models.Rule `yaml:"rules"`
}

type categoryDoc struct {
	Name   string `yaml:"name"`
	Budget string `yaml:"budget"`
}

// NewFileStore loads every profile found in dir.
func NewFileStore(dir string, logger logging.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		dir:         filepath.Join(dir, "profiles"),
		logger:      logger,
	}

	if err := os.MkdirAll(s.dir, models.PermissionDirectory); err != nil {
		return nil, fmt.Errorf("error creating directory: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("error reading profiles directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		if err := s.load(filepath.Join(s.dir, e.Name())); err != nil {
			return nil, err
		}
	}

	logger.WithFields(
		logging.Field{Key: logging.FieldBackend, Value: "file"},
		logging.Field{Key: logging.FieldCount, Value: len(s.profiles)},
	).Debug("Loaded profiles")
	return s, nil
}

func (s *FileStore) load(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the store's own directory listing
	if err != nil {
		return fmt.Errorf("error reading profile file: %w", err)
	}

	var doc profileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("error parsing profile file %s: %w", path, err)
	}
	name := doc.Profile
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".yaml")
	}
	if err := ValidateProfileName(name); err != nil {
		return fmt.Errorf("profile file %s: %w", path, err)
	}

	var p profileData
	seen := make(map[string]bool)
	for _, r := range doc.Rules {
		r, err := NormalizeRule(r)
		if err != nil || seen[r.Keyword] {
			s.logger.WithFields(
				logging.Field{Key: logging.FieldProfile, Value: name},
				logging.Field{Key: logging.FieldKeyword, Value: r.Keyword},
			).Warn("Ignoring invalid or duplicate rule")
			continue
		}
		seen[r.Keyword] = true
		p.rules = append(p.rules, r)
	}
	for _, c := range doc.Categories {
		budget := decimal.Zero
		if strings.TrimSpace(c.Budget) != "" {
			budget, err = models.ParseAmount(c.Budget)
			if err != nil {
				return fmt.Errorf("profile %s: category %s: %w", name, c.Name, err)
			}
		}
		category, err := NormalizeCategory(models.Category{Name: c.Name, Budget: budget})
		if err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
		if categoryIndex(p.categories, category.Name) >= 0 {
			continue
		}
		p.categories = append(p.categories, category)
	}

	s.restore(name, p)
	return nil
}

func (s *FileStore) path(profile string) string {
	return filepath.Join(s.dir, profile+".yaml")
}

// save writes the current state of profile to disk, replacing the file
// atomically.
func (s *FileStore) save(profile string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	p, ok := s.snapshot(profile)
	if !ok {
		return profileNotFound(profile)
	}

	doc := profileDoc{Profile: p.name, Rules: p.rules}
	for _, c := range p.categories {
		doc.Categories = append(doc.Categories, categoryDoc{Name: c.Name, Budget: c.Budget.StringFixed(2)})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error marshaling profile %s: %w", profile, err)
	}

	tmp := s.path(p.name) + ".tmp"
	if err := os.WriteFile(tmp, data, models.PermissionConfigFile); err != nil {
		return fmt.Errorf("error writing profile %s: %w", profile, err)
	}
	if err := os.Rename(tmp, s.path(p.name)); err != nil {
		return fmt.Errorf("error writing profile %s: %w", profile, err)
	}

	s.logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: profile},
		logging.Field{Key: "rules", Value: len(p.rules)},
		logging.Field{Key: "categories", Value: len(p.categories)},
	).Debug("Saved profile")
	return nil
}

func (s *FileStore) CreateProfile(ctx context.Context, name string) error {
	if err := s.MemoryStore.CreateProfile(ctx, name); err != nil {
		return err
	}
	return s.save(name)
}

func (s *FileStore) EnsureProfile(ctx context.Context, name string) error {
	if err := s.CreateProfile(ctx, name); err != nil && !isConflict(err) {
		return err
	}
	return nil
}

func (s *FileStore) DeleteProfile(ctx context.Context, name string) error {
	p, ok := s.snapshot(name)
	if !ok {
		return profileNotFound(name)
	}
	if err := s.MemoryStore.DeleteProfile(ctx, name); err != nil {
		return err
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := os.Remove(s.path(p.name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing profile %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) CreateRule(ctx context.Context, profile string, rule models.Rule) error {
	if err := s.MemoryStore.CreateRule(ctx, profile, rule); err != nil {
		return err
	}
	return s.save(profile)
}

func (s *FileStore) RenameRule(ctx context.Context, profile, keyword string, rule models.Rule) error {
	if err := s.MemoryStore.RenameRule(ctx, profile, keyword, rule); err != nil {
		return err
	}
	return s.save(profile)
}

func (s *FileStore) DeleteRule(ctx context.Context, profile, keyword string) error {
	if err := s.MemoryStore.DeleteRule(ctx, profile, keyword); err != nil {
		return err
	}
	return s.save(profile)
}

func (s *FileStore) SaveLearnedRules(ctx context.Context, profile string, rules []models.Rule) error {
	if err := s.MemoryStore.SaveLearnedRules(ctx, profile, rules); err != nil {
		return err
	}
	return s.save(profile)
}

func (s *FileStore) CreateCategory(ctx context.Context, profile string, category models.Category) error {
	if err := s.MemoryStore.CreateCategory(ctx, profile, category); err != nil {
		return err
	}
	return s.save(profile)
}

func (s *FileStore) UpdateCategory(ctx context.Context, profile, name string, category models.Category) error {
	if err := s.MemoryStore.UpdateCategory(ctx, profile, name, category); err != nil {
		return err
	}
	return s.save(profile)
}

func (s *FileStore) DeleteCategory(ctx context.Context, profile, name string) error {
	if err := s.MemoryStore.DeleteCategory(ctx, profile, name); err != nil {
		return err
	}
	return s.save(profile)
}
