// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/store"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store is a SQLite backed store.Store.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), models.PermissionDirectory); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(path); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.WithFields(
		logging.Field{Key: logging.FieldBackend, Value: "sqlite"},
		logging.Field{Key: "path", Value: path},
	).Debug("Opened store")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction, committing when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func profileID(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM profiles WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &apperrors.NotFoundError{Entity: "profile", Key: name}
	}
	if err != nil {
		return 0, fmt.Errorf("lookup profile: %w", err)
	}
	return id, nil
}

func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CreateProfile(ctx context.Context, name string) error {
	if err := store.ValidateProfileName(name); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM profiles WHERE name = ?`, name)
		if err != nil {
			return fmt.Errorf("lookup profile: %w", err)
		}
		if found {
			return &apperrors.ConflictError{Entity: "profile", Key: name}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
}

func (s *Store) EnsureProfile(ctx context.Context, name string) error {
	if err := store.ValidateProfileName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO profiles (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, name)
		if err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM rules WHERE profile_id = ?`,
			`DELETE FROM categories WHERE profile_id = ?`,
			`DELETE FROM profiles WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete profile: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) ProfileExists(ctx context.Context, name string) (bool, error) {
	found, err := exists(ctx, s.db, `SELECT 1 FROM profiles WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("lookup profile: %w", err)
	}
	return found, nil
}

func (s *Store) ListRules(ctx context.Context, profile string) ([]models.Rule, error) {
	var rules []models.Rule
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `SELECT keyword, category FROM rules WHERE profile_id = ? ORDER BY id`, id)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r models.Rule
			if err := rows.Scan(&r.Keyword, &r.Category); err != nil {
				return fmt.Errorf("scan rule: %w", err)
			}
			rules = append(rules, r)
		}
		return rows.Err()
	})
	return rules, err
}

func (s *Store) CreateRule(ctx context.Context, profile string, rule models.Rule) error {
	r, err := store.NormalizeRule(rule)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		found, err := exists(ctx, tx, `SELECT 1 FROM rules WHERE profile_id = ? AND keyword = ?`, id, r.Keyword)
		if err != nil {
			return fmt.Errorf("lookup rule: %w", err)
		}
		if found {
			return &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO rules (profile_id, keyword, category) VALUES (?, ?, ?)`, id, r.Keyword, r.Category); err != nil {
			return fmt.Errorf("insert rule: %w", err)
		}
		return nil
	})
}

func (s *Store) RenameRule(ctx context.Context, profile, keyword string, rule models.Rule) error {
	r, err := store.NormalizeRule(rule)
	if err != nil {
		return err
	}
	key := models.NormalizeKeyword(keyword)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		var ruleID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM rules WHERE profile_id = ? AND keyword = ?`, id, key).Scan(&ruleID)
		if errors.Is(err, sql.ErrNoRows) {
			return &apperrors.NotFoundError{Entity: "rule", Key: key}
		}
		if err != nil {
			return fmt.Errorf("lookup rule: %w", err)
		}
		taken, err := exists(ctx, tx, `SELECT 1 FROM rules WHERE profile_id = ? AND keyword = ? AND id <> ?`, id, r.Keyword, ruleID)
		if err != nil {
			return fmt.Errorf("lookup rule: %w", err)
		}
		if taken {
			return &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE rules SET keyword = ?, category = ? WHERE id = ?`, r.Keyword, r.Category, ruleID); err != nil {
			return fmt.Errorf("update rule: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteRule(ctx context.Context, profile, keyword string) error {
	key := models.NormalizeKeyword(keyword)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE profile_id = ? AND keyword = ?`, id, key)
		if err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &apperrors.NotFoundError{Entity: "rule", Key: key}
		}
		return nil
	})
}

func (s *Store) SaveLearnedRules(ctx context.Context, profile string, rules []models.Rule) error {
	normalized := make([]models.Rule, 0, len(rules))
	for _, rule := range rules {
		r, err := store.NormalizeRule(rule)
		if err != nil {
			return err
		}
		normalized = append(normalized, r)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO rules (profile_id, keyword, category) VALUES (?, ?, ?)
			ON CONFLICT (profile_id, keyword) DO UPDATE SET category = excluded.category`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range normalized {
			if _, err := stmt.ExecContext(ctx, id, r.Keyword, r.Category); err != nil {
				return fmt.Errorf("upsert rule %s: %w", r.Keyword, err)
			}
		}
		s.logger.WithFields(
			logging.Field{Key: logging.FieldProfile, Value: profile},
			logging.Field{Key: logging.FieldCount, Value: len(normalized)},
		).Debug("Saved learned rules")
		return nil
	})
}

func (s *Store) ListCategories(ctx context.Context, profile string) ([]models.Category, error) {
	var categories []models.Category
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `SELECT name, budget FROM categories WHERE profile_id = ? ORDER BY id`, id)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var c models.Category
			if err := rows.Scan(&c.Name, &c.Budget); err != nil {
				return fmt.Errorf("scan category: %w", err)
			}
			categories = append(categories, c)
		}
		return rows.Err()
	})
	return categories, err
}

func (s *Store) CreateCategory(ctx context.Context, profile string, category models.Category) error {
	c, err := store.NormalizeCategory(category)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		found, err := exists(ctx, tx, `SELECT 1 FROM categories WHERE profile_id = ? AND name = ?`, id, c.Name)
		if err != nil {
			return fmt.Errorf("lookup category: %w", err)
		}
		if found {
			return &apperrors.ConflictError{Entity: "category", Key: c.Name}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (profile_id, name, budget) VALUES (?, ?, ?)`, id, c.Name, budgetValue(c.Budget)); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateCategory(ctx context.Context, profile, name string, category models.Category) error {
	c, err := store.NormalizeCategory(category)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		var categoryID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE profile_id = ? AND name = ?`, id, name).Scan(&categoryID)
		if errors.Is(err, sql.ErrNoRows) {
			return &apperrors.NotFoundError{Entity: "category", Key: name}
		}
		if err != nil {
			return fmt.Errorf("lookup category: %w", err)
		}
		taken, err := exists(ctx, tx, `SELECT 1 FROM categories WHERE profile_id = ? AND name = ? AND id <> ?`, id, c.Name, categoryID)
		if err != nil {
			return fmt.Errorf("lookup category: %w", err)
		}
		if taken {
			return &apperrors.ConflictError{Entity: "category", Key: c.Name}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE categories SET name = ?, budget = ? WHERE id = ?`, c.Name, budgetValue(c.Budget), categoryID); err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteCategory(ctx context.Context, profile, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE profile_id = ? AND name = ?`, id, name)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &apperrors.NotFoundError{Entity: "category", Key: name}
		}
		return nil
	})
}

// budgetValue stores budgets as fixed two-decimal text.
func budgetValue(d decimal.Decimal) string {
	return d.StringFixed(2)
}
