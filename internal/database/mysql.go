package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLDatabase represents MySQL specific implementation
type MySQLDatabase struct {
	*Database
}

// NewMySQLDatabase creates new MySQL database instance
func NewMySQLDatabase(dsn string, opts Options, logger *zap.Logger) (*MySQLDatabase, error) {
	base, err := newDatabase("mysql", DialectMySQL, addMySQLParams(dsn), opts, logger)
	if err != nil {
		return nil, err
	}

	d := &MySQLDatabase{
		Database: base,
	}

	if err := d.init(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}

	return d, nil
}

// init verifies the connection. Session variables are applied through the
// DSN so that every pooled connection carries them.
func (d *MySQLDatabase) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.QueryTimeout)
	defer cancel()
	return d.Ping(ctx)
}

// WithTransaction overrides default implementation for MySQL
func (d *MySQLDatabase) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return d.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead}, fn)
}

// addMySQLParams adds the parameters the stores rely on
func addMySQLParams(dsn string) string {
	params := []string{
		"charset=utf8mb4",
		"interpolateParams=true",
		"clientFoundRows=true",
		"loc=UTC",
		"time_zone=%27%2B00%3A00%27",
		"sql_mode=%27STRICT_ALL_TABLES%2CNO_ENGINE_SUBSTITUTION%27",
	}

	if !strings.Contains(dsn, "parseTime=true") {
		params = append(params, "parseTime=true")
	}

	queryStart := "?"
	if strings.Contains(dsn, "?") {
		queryStart = "&"
	}
	return dsn + queryStart + strings.Join(params, "&")
}
