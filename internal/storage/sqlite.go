package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps blobs in the blobs table of a SQLite database.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenDB(DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Put inserts or replaces the blob at key.
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	query := `
		INSERT INTO blobs (key, body, size, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, size = excluded.size, updated_at = excluded.updated_at
	`
	updatedAt := time.Now().UTC().Format("2006-01-02 15:04:05.999999")
	if _, err := s.db.Conn().ExecContext(ctx, query, key, data, len(data), updatedAt); err != nil {
		return fmt.Errorf("failed to put blob: %w", err)
	}
	return nil
}

// Get returns the blob at key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.Conn().QueryRowContext(ctx, `SELECT body FROM blobs WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return body, nil
}

// Delete removes the blob at key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the keys under prefix.
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT key FROM blobs WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return keys, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
