package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDatabase represents PostgreSQL database implementation. It runs
// on either lib/pq ("postgres") or pgx ("pgx").
type PostgresDatabase struct {
	*Database
}

// NewPostgresDatabase creates new PostgreSQL database instance on lib/pq
func NewPostgresDatabase(dsn string, opts Options, logger *zap.Logger) (*PostgresDatabase, error) {
	return newPostgres("postgres", dsn, opts, logger)
}

// NewPgxDatabase creates new PostgreSQL database instance on pgx
func NewPgxDatabase(dsn string, opts Options, logger *zap.Logger) (*PostgresDatabase, error) {
	return newPostgres("pgx", dsn, opts, logger)
}

func newPostgres(driver, dsn string, opts Options, logger *zap.Logger) (*PostgresDatabase, error) {
	base, err := newDatabase(driver, DialectPostgres, addPostgresParams(dsn), opts, logger)
	if err != nil {
		return nil, err
	}

	d := &PostgresDatabase{
		Database: base,
	}

	if err := d.init(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	return d, nil
}

// init verifies the connection
func (d *PostgresDatabase) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.QueryTimeout)
	defer cancel()
	return d.Ping(ctx)
}

// WithTransaction overrides default implementation for PostgreSQL
func (d *PostgresDatabase) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return d.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// addPostgresParams adds connection parameters to URL style DSNs
func addPostgresParams(dsn string) string {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		// key=value DSN
		if !strings.Contains(dsn, "sslmode=") {
			dsn += " sslmode=disable"
		}
		return dsn
	}

	var params []string
	if !strings.Contains(dsn, "sslmode=") {
		params = append(params, "sslmode=disable")
	}
	if !strings.Contains(dsn, "timezone=") {
		params = append(params, "timezone=UTC")
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
