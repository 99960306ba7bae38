// Package store provides the SQLite implementation of ContentStore.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements ContentStore using a single SQLite database.
// Image bytes live in a blob column next to the prompt and creation time,
// so cached artifacts can be inspected with plain SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		prompt TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Put stores or overwrites the blob for id.
func (s *SQLiteStore) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		id, data, time.Now(),
	)
	return err
}

// PutWithPrompt stores the blob for id along with the prompt that produced it.
func (s *SQLiteStore) PutWithPrompt(ctx context.Context, id string, data []byte, prompt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, data, prompt, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, prompt = excluded.prompt`,
		id, data, prompt, time.Now(),
	)
	return err
}

// Get returns the blob for id, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM artifacts WHERE id = ?`, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the blob for id. Deleting a missing ID is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	return err
}

// Count returns the number of stored artifacts.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
