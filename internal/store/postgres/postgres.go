// Package postgres implements store.Store on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed 001_create_budget.sql
var migrationSQL string

const uniqueViolation = "23505"

// Store is a PostgreSQL backed store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and creates the schema when missing.
func Open(ctx context.Context, dsn string, maxConns int, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns) // #nosec G115 -- validated by config
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.WithField(logging.FieldBackend, "postgres").Debug("Opened store")
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func profileID(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM profiles WHERE LOWER(name) = LOWER($1)`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &apperrors.NotFoundError{Entity: "profile", Key: name}
	}
	if err != nil {
		return 0, fmt.Errorf("looking up profile: %w", err)
	}
	return id, nil
}

func (s *Store) CreateProfile(ctx context.Context, name string) error {
	if err := store.ValidateProfileName(name); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO profiles (name) VALUES ($1)`, name)
	if isUniqueViolation(err) {
		return &apperrors.ConflictError{Entity: "profile", Key: name}
	}
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

func (s *Store) EnsureProfile(ctx context.Context, name string) error {
	if err := store.ValidateProfileName(name); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO profiles (name) VALUES ($1) ON CONFLICT DO NOTHING`, name); err != nil {
		return fmt.Errorf("ensuring profile: %w", err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE LOWER(name) = LOWER($1)`, name)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperrors.NotFoundError{Entity: "profile", Key: name}
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning profiles: %w", err)
	}
	return names, nil
}

func (s *Store) ProfileExists(ctx context.Context, name string) (bool, error) {
	var found bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE LOWER(name) = LOWER($1))`, name).Scan(&found); err != nil {
		return false, fmt.Errorf("looking up profile: %w", err)
	}
	return found, nil
}

func (s *Store) ListRules(ctx context.Context, profile string) ([]models.Rule, error) {
	var rules []models.Rule
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT keyword, category FROM rules WHERE profile_id = $1 ORDER BY id`, id)
		if err != nil {
			return fmt.Errorf("listing rules: %w", err)
		}
		rules, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Rule, error) {
			var r models.Rule
			err := row.Scan(&r.Keyword, &r.Category)
			return r, err
		})
		if err != nil {
			return fmt.Errorf("scanning rules: %w", err)
		}
		return nil
	})
	return rules, err
}

func (s *Store) CreateRule(ctx context.Context, profile string, rule models.Rule) error {
	r, err := store.NormalizeRule(rule)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO rules (profile_id, keyword, category) VALUES ($1, $2, $3)`, id, r.Keyword, r.Category)
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
		}
		if err != nil {
			return fmt.Errorf("inserting rule: %w", err)
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
	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE rules SET keyword = $3, category = $4, updated_at = NOW()
			WHERE profile_id = $1 AND keyword = $2`, id, key, r.Keyword, r.Category)
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
		}
		if err != nil {
			return fmt.Errorf("updating rule: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperrors.NotFoundError{Entity: "rule", Key: key}
		}
		return nil
	})
}

func (s *Store) DeleteRule(ctx context.Context, profile, keyword string) error {
	key := models.NormalizeKeyword(keyword)
	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rules WHERE profile_id = $1 AND keyword = $2`, id, key)
		if err != nil {
			return fmt.Errorf("deleting rule: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperrors.NotFoundError{Entity: "rule", Key: key}
		}
		return nil
	})
}

// SaveLearnedRules upserts all rules in one round trip.
func (s *Store) SaveLearnedRules(ctx context.Context, profile string, rules []models.Rule) error {
	normalized := make([]models.Rule, 0, len(rules))
	for _, rule := range rules {
		r, err := store.NormalizeRule(rule)
		if err != nil {
			return err
		}
		normalized = append(normalized, r)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		if len(normalized) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, r := range normalized {
			batch.Queue(`
				INSERT INTO rules (profile_id, keyword, category) VALUES ($1, $2, $3)
				ON CONFLICT (profile_id, keyword) DO UPDATE SET
					category = EXCLUDED.category,
					updated_at = NOW()
			`, id, r.Keyword, r.Category)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range normalized {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upserting rule %s: %w", normalized[i].Keyword, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("closing batch: %w", err)
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
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `SELECT name, budget::text FROM categories WHERE profile_id = $1 ORDER BY id`, id)
		if err != nil {
			return fmt.Errorf("listing categories: %w", err)
		}
		categories, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
			var (
				c      models.Category
				budget string
			)
			if err := row.Scan(&c.Name, &budget); err != nil {
				return c, err
			}
			c.Budget, err = decimal.NewFromString(budget)
			return c, err
		})
		if err != nil {
			return fmt.Errorf("scanning categories: %w", err)
		}
		return nil
	})
	return categories, err
}

func (s *Store) CreateCategory(ctx context.Context, profile string, category models.Category) error {
	c, err := store.NormalizeCategory(category)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO categories (profile_id, name, budget) VALUES ($1, $2, $3::numeric)`,
			id, c.Name, c.Budget.StringFixed(2))
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Entity: "category", Key: c.Name}
		}
		if err != nil {
			return fmt.Errorf("inserting category: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateCategory(ctx context.Context, profile, name string, category models.Category) error {
	c, err := store.NormalizeCategory(category)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE categories SET name = $3, budget = $4::numeric
			WHERE profile_id = $1 AND LOWER(name) = LOWER($2)`, id, name, c.Name, c.Budget.StringFixed(2))
		if isUniqueViolation(err) {
			return &apperrors.ConflictError{Entity: "category", Key: c.Name}
		}
		if err != nil {
			return fmt.Errorf("updating category: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperrors.NotFoundError{Entity: "category", Key: name}
		}
		return nil
	})
}

func (s *Store) DeleteCategory(ctx context.Context, profile, name string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		id, err := profileID(ctx, tx, profile)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE profile_id = $1 AND LOWER(name) = LOWER($2)`, id, name)
		if err != nil {
			return fmt.Errorf("deleting category: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperrors.NotFoundError{Entity: "category", Key: name}
		}
		return nil
	})
}
