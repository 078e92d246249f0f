package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetCacheValue reads a durable cache entry. The second return value reports
// whether the key was present.
func (s *SQLiteStorage) GetCacheValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM cache_entries WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

// SetCacheValue writes a durable cache entry, replacing any previous value.
func (s *SQLiteStorage) SetCacheValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// DeleteCacheValue removes a durable cache entry. Deleting an absent key is
// not an error.
func (s *SQLiteStorage) DeleteCacheValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// CacheKV adapts a Storage to the durable-tier key-value interface expected
// by the dataset cache.
type CacheKV struct {
	S Storage
}

// Get implements the durable tier read.
func (k CacheKV) Get(ctx context.Context, key string) (string, bool, error) {
	return k.S.GetCacheValue(ctx, key)
}

// Set implements the durable tier write.
func (k CacheKV) Set(ctx context.Context, key, value string) error {
	return k.S.SetCacheValue(ctx, key, value)
}

// Delete implements the durable tier delete.
func (k CacheKV) Delete(ctx context.Context, key string) error {
	return k.S.DeleteCacheValue(ctx, key)
}
