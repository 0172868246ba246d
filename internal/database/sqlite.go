package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteDatabase represents SQLite specific implementation
type SQLiteDatabase struct {
	*Database
	path string
}

// NewSQLiteDatabase creates new SQLite database instance
func NewSQLiteDatabase(dsn string, opts Options, logger *zap.Logger) (*SQLiteDatabase, error) {
	memory := isMemoryDSN(dsn)
	if memory {
		// every connection to :memory: is a separate database
		opts.MaxOpenConns = 1
		opts.MaxIdleConns = 1
		opts.ConnMaxLifetime = 0
	} else if err := ensureDBDir(dsn); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	base, err := newDatabase("sqlite3", DialectSQLite, addSQLiteParams(dsn), opts, logger)
	if err != nil {
		return nil, err
	}
	if memory {
		base.db.SetConnMaxLifetime(0)
		base.db.SetConnMaxIdleTime(0)
	}

	d := &SQLiteDatabase{
		Database: base,
		path:     dsn,
	}

	if err := d.init(); err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	return d, nil
}

// init initializes SQLite specific settings
func (d *SQLiteDatabase) init() error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
		{"busy_timeout", "5000"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := d.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to set %s: %w", pragma.name, err)
		}
	}

	return nil
}

// WithTransaction overrides default implementation with SQLite specific options
func (d *SQLiteDatabase) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return d.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault}, fn)
}

// Path returns the DSN the database was opened with
func (d *SQLiteDatabase) Path() string {
	return d.path
}

// isMemoryDSN reports an in-memory database
func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ensureDBDir ensures database directory exists
func ensureDBDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// addSQLiteParams adds SQLite specific connection parameters
func addSQLiteParams(dsn string) string {
	params := []string{
		"_busy_timeout=5000",
		"_foreign_keys=1",
		"_loc=UTC",
		// take the write lock at BEGIN so read-modify-write transactions
		// queue on busy_timeout instead of failing on lock upgrade
		"_txlock=immediate",
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + strings.Join(params, "&")
}
