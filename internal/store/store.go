// ABOUTME: Store interface and data types for the mcp-gateway request log.
// ABOUTME: Records one row per query attempt for audit and diagnosis.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Outcome constants for request records
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Request represents one query attempt against the managed MCP server,
// success or failure.
type Request struct {
	ID         string
	ServerName string
	Command    string
	Outcome    string // "success" or "error"
	ErrorClass string // protocol error class for failures, empty on success
	DurationMS int64
	CreatedAt  time.Time
}

// Store persists request records.
type Store interface {
	// SaveRequest records one query attempt.
	SaveRequest(ctx context.Context, req *Request) error

	// RecentRequests returns up to limit records, newest first.
	RecentRequests(ctx context.Context, limit int) ([]*Request, error)

	// Close releases the underlying database.
	Close() error
}
