package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore persists values in the settings_store table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the value for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings_store WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the value for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}
