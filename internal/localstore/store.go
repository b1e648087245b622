// Package localstore is the device-local key-value store backing the
// ownership mirror and minigame state. Keys are namespaced per user to
// prevent cross-account leakage on a shared device.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store is a namespaced key-value store on an embedded SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given file path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("local store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// SQLite allows one writer at a time; a larger pool just produces
	// SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("local store get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv (k, v, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("local store set %q: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
			return fmt.Errorf("local store delete %q: %w", key, err)
		}
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := strings.ReplaceAll(strings.ReplaceAll(prefix, `\`, `\\`), "%", `\%`)
	pattern = strings.ReplaceAll(pattern, "_", `\_`) + "%"
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k LIKE ? ESCAPE '\'`, pattern); err != nil {
		return fmt.Errorf("local store delete prefix %q: %w", prefix, err)
	}
	return nil
}

// Keys lists every stored key starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := strings.ReplaceAll(strings.ReplaceAll(prefix, `\`, `\\`), "%", `\%`)
	pattern = strings.ReplaceAll(pattern, "_", `\_`) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT k FROM kv WHERE k LIKE ? ESCAPE '\' ORDER BY k`, pattern)
	if err != nil {
		return nil, fmt.Errorf("local store list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
