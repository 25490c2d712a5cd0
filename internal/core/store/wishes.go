package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wishmail/wishmail/internal/core"
)

const defaultCategory = "general"

//go:embed default_wishes.yaml
var defaultWishesYAML []byte

// wishCatalog is the YAML document accepted by ImportWishes.
type wishCatalog struct {
	Wishes []wishEntry `yaml:"wishes"`
}

type wishEntry struct {
	Content  string `yaml:"content"`
	Category string `yaml:"category"`
	Active   *bool  `yaml:"active"`
}

// ImportResult counts the outcome of a catalog import.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// AddWish inserts a catalog entry. Content is validated and trimmed.
func (s *Store) AddWish(ctx context.Context, content, category string, now time.Time) (*core.Wish, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	content, err := core.NormalizeWish(content)
	if err != nil {
		return nil, err
	}
	category = normalizeCategory(category)

	created := now.UTC().Unix()
	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO wishes (content, category, is_active, created_at)
		VALUES (?, ?, 1, ?)
	`, content, category, created)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("wish: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert wish: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert wish: %w", err)
	}

	return &core.Wish{
		ID:        id,
		Content:   content,
		Category:  category,
		Active:    true,
		CreatedAt: time.Unix(created, 0).UTC(),
	}, nil
}

// SetWishActive enables or disables a catalog entry.
func (s *Store) SetWishActive(ctx context.Context, id int64, active bool) error {
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE wishes SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update wish: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWishes returns the catalog ordered by category then id.
func (s *Store) ListWishes(ctx context.Context, includeInactive bool) ([]core.Wish, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `SELECT id, content, category, is_active, created_at FROM wishes`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY category, id`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch wishes: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var wishes []core.Wish
	for rows.Next() {
		var (
			wish      core.Wish
			active    int
			createdAt int64
		)
		if err := rows.Scan(&wish.ID, &wish.Content, &wish.Category, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan wish: %w", err)
		}
		wish.Active = active != 0
		wish.CreatedAt = time.Unix(createdAt, 0).UTC()
		wishes = append(wishes, wish)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishes: %w", err)
	}
	return wishes, nil
}

// RandomWish picks an active wish, or core.DefaultWish when none exist.
func (s *Store) RandomWish(ctx context.Context) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	var content string
	err := s.DB.QueryRowContext(ctx, `
		SELECT content FROM wishes WHERE is_active = 1 ORDER BY RANDOM() LIMIT 1
	`).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DefaultWish, nil
		}
		return "", fmt.Errorf("fetch random wish: %w", err)
	}
	return content, nil
}

// ImportWishes reads a YAML catalog ({wishes: [{content, category, active}]})
// and inserts every entry. Entries whose content already exists are skipped;
// an invalid entry aborts the import with its position.
func (s *Store) ImportWishes(ctx context.Context, r io.Reader, now time.Time) (ImportResult, error) {
	var result ImportResult
	if err := s.ready(); err != nil {
		return result, err
	}

	var catalog wishCatalog
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		return result, fmt.Errorf("parse wish catalog: %w", err)
	}

	created := now.UTC().Unix()
	for i, entry := range catalog.Wishes {
		content, err := core.NormalizeWish(entry.Content)
		if err != nil {
			return result, fmt.Errorf("wish #%d: %w", i+1, err)
		}
		active := entry.Active == nil || *entry.Active

		res, err := s.DB.ExecContext(ctx, `
			INSERT OR IGNORE INTO wishes (content, category, is_active, created_at)
			VALUES (?, ?, ?, ?)
		`, content, normalizeCategory(entry.Category), boolToInt(active), created)
		if err != nil {
			return result, fmt.Errorf("insert wish #%d: %w", i+1, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			result.Skipped++
			continue
		}
		result.Added++
	}
	return result, nil
}

// SeedDefaultWishes loads the built-in catalog. Existing entries are kept.
func (s *Store) SeedDefaultWishes(ctx context.Context, now time.Time) (ImportResult, error) {
	return s.ImportWishes(ctx, bytes.NewReader(defaultWishesYAML), now)
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return defaultCategory
	}
	return category
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
