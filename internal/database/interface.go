package database

import (
	"context"
	"database/sql"
)

// Interface defines the database interface
type Interface interface {
	// Basic operations

	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row

	// Transaction operations

	WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error

	// Dialect helpers

	Rebind(query string) string

	// Maintenance operations

	Ping(ctx context.Context) error
	Close() error
	Stats() Stats
	Driver() string
	Dialect() string
	Unwrap() *sql.DB
}
