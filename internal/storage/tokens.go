package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// AdminToken represents an admin API token. The secret itself is only
// returned once, at creation; storage keeps a sha256 lookup hash and
// a bcrypt hash.
type AdminToken struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// CreateAdminToken stores a new admin token. The sha256 hash of the secret
// is kept as an indexed lookup key, the bcrypt hash for verification.
// Returns ErrDuplicate if a token with this name already exists.
func (s *SQLiteStorage) CreateAdminToken(ctx context.Context, name, secret string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("token name cannot be empty")
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return 0, fmt.Errorf("failed to hash token secret: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO admin_tokens (name, token_hash, secret_hash) VALUES (?, ?, ?)",
		name, HashToken(secret), hash)
	if err != nil {
		// UNIQUE constraint: extended code 2067, base code 19
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			if sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT {
				return 0, ErrDuplicate
			}
		}
		return 0, fmt.Errorf("failed to create admin token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert ID: %w", err)
	}
	return id, nil
}

// ListAdminTokens returns all admin tokens (without secret hashes).
func (s *SQLiteStorage) ListAdminTokens(ctx context.Context) ([]*AdminToken, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM admin_tokens ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query admin tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := []*AdminToken{}
	for rows.Next() {
		var t AdminToken
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token rows: %w", err)
	}
	return tokens, nil
}

// DeleteAdminToken deletes an admin token by ID.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStorage) DeleteAdminToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM admin_tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete admin token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyAdminToken looks up a presented secret by its sha256 hash and
// verifies the bcrypt hash of the matched row.
// Returns ErrNotFound if no token matches.
func (s *SQLiteStorage) VerifyAdminToken(ctx context.Context, secret string) (*AdminToken, error) {
	var t AdminToken
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, secret_hash, created_at FROM admin_tokens WHERE token_hash = ?",
		HashToken(secret)).Scan(&t.ID, &t.Name, &hash, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query admin token: %w", err)
	}
	if VerifySecret(secret, hash) != nil {
		return nil, ErrNotFound
	}
	return &t, nil
}
