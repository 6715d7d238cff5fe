// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides request-log persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			server_name TEXT NOT NULL,
			command TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_class TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_requests_created_at
			ON requests(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRequest records one query attempt.
func (s *SQLiteStore) SaveRequest(ctx context.Context, req *Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, server_name, command, outcome, error_class, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ServerName, req.Command, req.Outcome, req.ErrorClass, req.DurationMS, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving request: %w", err)
	}
	return nil
}

// RecentRequests returns up to limit records, newest first.
func (s *SQLiteStore) RecentRequests(ctx context.Context, limit int) ([]*Request, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, server_name, command, outcome, error_class, duration_ms, created_at
		FROM requests
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.ServerName, &req.Command, &req.Outcome, &req.ErrorClass, &req.DurationMS, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}

	return requests, nil
}
