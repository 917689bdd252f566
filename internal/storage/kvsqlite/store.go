// Package kvsqlite keeps session keys in a SQLite file so command-line sessions survive
// between runs the way browser storage does.
package kvsqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Its-donkey/storefront/internal/ui/state"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_items (
	namespace  TEXT NOT NULL,
	item_key   TEXT NOT NULL,
	item_value TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, item_key)
)`

const opTimeout = 5 * time.Second

// Store is a state.Storage over one namespace of a SQLite database.
type Store struct {
	sqlDB     *sql.DB
	namespace string
	now       func() time.Time
}

var _ state.Storage = (*Store)(nil)

// Open opens path and prepares the schema. namespace partitions keys between profiles
// sharing one file.
func Open(path, namespace string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "default"
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, namespace: namespace, now: time.Now}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) GetItem(key string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT item_value FROM kv_items WHERE namespace = ? AND item_key = ?`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", state.ErrStorageUnavailable, key, err)
	}
	return value, true, nil
}

func (s *Store) SetItem(key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv_items (namespace, item_key, item_value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, item_key) DO UPDATE SET
			item_value = excluded.item_value,
			updated_at = excluded.updated_at`,
		s.namespace, key, value, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", state.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *Store) RemoveItem(key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM kv_items WHERE namespace = ? AND item_key = ?`,
		s.namespace, key,
	); err != nil {
		return fmt.Errorf("%w: remove %s: %v", state.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Keys lists the keys stored in the namespace in key order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT item_key FROM kv_items WHERE namespace = ? ORDER BY item_key`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("%w: storage is not configured", state.ErrStorageUnavailable)
	}
	return nil
}
