// Package dbexec provides database query execution abstractions.
// The resolution engine only ever reads: every compiled operation is a
// single SELECT, so the executor surface is query-only. Role-aware
// execution applies MySQL SET ROLE on a dedicated connection before the
// statement runs.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so callers can swap in role-aware behavior.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// StandardExecutor runs queries directly against a database handle without
// any per-request role handling.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor bound to db.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}
