// Package store abstracts the tabular data backends queries run against.
package store

import (
	"context"

	"github.com/tablesage-ai/tablesage/pkg/models"
)

// RowSet is the materialized result of a query: column names in select
// order plus normalized row records.
type RowSet struct {
	Fields   []string
	Rows     []models.RowRecord
	RowCount int
}

// Store opens connections to one backend.
type Store interface {
	// Connect establishes a connection or returns a pooled one.
	Connect(ctx context.Context) (Conn, error)
}

// Conn executes SQL against a backend connection.
type Conn interface {
	// Query runs a single SELECT statement. When limit is positive the
	// result is capped at that many rows.
	Query(ctx context.Context, query string, limit int) (*RowSet, error)
	Close() error
}
