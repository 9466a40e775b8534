package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const registryFile = "worlds.db"

// ErrInvalidWorldName rejects names that could escape the storage root.
var ErrInvalidWorldName = errors.New("invalid world name")

// WorldEntry is one row of the world registry.
type WorldEntry struct {
	Name       string
	ID         string
	SeedString string
	Seed       int64
	CreatedAt  time.Time
	LastOpened time.Time
}

// Registry lists the worlds known below a storage root.
type Registry struct {
	db *sql.DB
}

// OpenRegistry opens (creating if needed) <root>/worlds.db.
func OpenRegistry(root string) (*Registry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(root, registryFile))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initRegistry(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Registry{db: db}, nil
}

func initRegistry(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS worlds (
			name TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			seed_string TEXT NOT NULL,
			seed INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			last_opened INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init registry: %w", err)
		}
	}
	return nil
}

// Register records the world, refreshing last_opened when it already exists.
func (r *Registry) Register(ctx context.Context, meta WorldMeta, openedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO worlds (name, id, seed_string, seed, created_at, last_opened)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET last_opened = excluded.last_opened`,
		meta.Name, meta.ID.String(), meta.SeedString, meta.Seed, meta.CreatedAt.UnixNano(), openedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("register world %q: %w", meta.Name, err)
	}
	return nil
}

// List returns every registered world ordered by name.
func (r *Registry) List(ctx context.Context) ([]WorldEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, id, seed_string, seed, created_at, last_opened
		FROM worlds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}
	defer rows.Close()

	var out []WorldEntry
	for rows.Next() {
		var e WorldEntry
		var created, opened int64
		if err := rows.Scan(&e.Name, &e.ID, &e.SeedString, &e.Seed, &created, &opened); err != nil {
			return nil, fmt.Errorf("scan world: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		e.LastOpened = time.Unix(0, opened).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list worlds: %w", err)
	}
	return out, nil
}

func (r *Registry) Remove(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM worlds WHERE name = ?`, name); err != nil {
		return fmt.Errorf("remove world %q: %w", name, err)
	}
	return nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// ValidateWorldName rejects empty names and names carrying path separators or
// dots, so a world name always maps to one directory directly below the root.
func ValidateWorldName(name string) error {
	if name == "" || strings.ContainsAny(name, `./\`) {
		return fmt.Errorf("%w: %q", ErrInvalidWorldName, name)
	}
	return nil
}

// DeleteWorld removes a world's directory and its registry entry. The name is
// validated before anything on disk is touched.
func DeleteWorld(ctx context.Context, root, name string, reg *Registry) error {
	if err := ValidateWorldName(name); err != nil {
		return err
	}
	if err := os.RemoveAll(WorldDir(root, name)); err != nil {
		return fmt.Errorf("delete world %q: %w", name, err)
	}
	if reg != nil {
		return reg.Remove(ctx, name)
	}
	return nil
}
