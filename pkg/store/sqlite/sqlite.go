// Package sqlite provides a SQLite-backed settings store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"modhost/pkg/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating when needed) the database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrations = append(migrations, entry.Name())
		}
	}
	sort.Strings(migrations)

	for _, name := range migrations {
		version := strings.TrimSuffix(name, ".sql")
		if applied[version] {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// Get returns the value for key or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key store.Key) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM module_settings WHERE module_id = ? AND access_id = ?`,
		key.ModuleID, key.AccessID,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}

	return value, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key store.Key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO module_settings (module_id, access_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(module_id, access_id) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key.ModuleID, key.AccessID, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM module_settings WHERE module_id = ? AND access_id = ?`,
		key.ModuleID, key.AccessID,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns the module's entries ordered by access id.
func (s *Store) List(ctx context.Context, moduleID string) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT access_id, value, updated_at FROM module_settings WHERE module_id = ? ORDER BY access_id`,
		moduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", moduleID, err)
	}
	defer rows.Close()

	var result []store.Entry
	for rows.Next() {
		var accessID, value, updatedAt string
		if err := rows.Scan(&accessID, &value, &updatedAt); err != nil {
			return nil, err
		}
		entry := store.Entry{
			Key:   store.Key{ModuleID: moduleID, AccessID: accessID},
			Value: value,
		}
		entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		result = append(result, entry)
	}

	return result, rows.Err()
}

// Modules returns the sorted ids of modules with persisted values.
func (s *Store) Modules(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT module_id FROM module_settings ORDER BY module_id`)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
