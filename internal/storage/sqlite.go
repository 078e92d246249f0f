package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes per connection; a single connection
	// avoids SQLITE_BUSY under concurrent request handlers.
	db.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		//nolint:errcheck
		db.Close()
		return nil, err
	}
	return &SQLiteStorage{db: db}, nil
}

// NewSQLiteStorage creates a SQLiteStorage over an existing database handle.
// The caller is responsible for schema initialization.
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Ping verifies the database connection is alive.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
