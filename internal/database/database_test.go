package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"adgate/internal/config"
	"adgate/internal/types"
)

func TestNewSQLiteMemoryMigrates(t *testing.T) {
	db, err := New(&config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		DSN:         ":memory:",
		AutoMigrate: true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite3", db.Driver())
	assert.Equal(t, DialectSQLite, db.Dialect())

	ctx := context.Background()
	_, err = db.ExecContext(ctx, "INSERT INTO profiles (user_id) VALUES (?)", "u1")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count))
	assert.Equal(t, 1, count)
	assert.GreaterOrEqual(t, db.Stats().QueryCount, int64(2))
}

func TestNewSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "adgate.db")
	db, err := New(&config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		DSN:         path,
		AutoMigrate: true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
	// closing twice is harmless
	require.NoError(t, db.Close())
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(&config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = newInstance(&config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, types.ErrInvalidDriver)
}

func TestWithTransactionRollsBack(t *testing.T) {
	db, err := New(&config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		DSN:         ":memory:",
		AutoMigrate: true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO profiles (user_id) VALUES (?)", "u1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestRebindAndBuilder(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", ConvertPlaceholders("SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "a = ?", rebind(DialectMySQL, "a = ?"))

	qb := NewQueryBuilder(DialectPostgres).
		Select("id", "title").
		From("notifications").
		Where("user_id = ?", "u1").
		Where("is_read = ?", false).
		OrderBy("created_at DESC").
		Limit(10)
	assert.Equal(t, "SELECT id, title FROM notifications WHERE user_id = $1 AND is_read = $2 ORDER BY created_at DESC LIMIT 10", qb.SQL())
	assert.Equal(t, []any{"u1", false}, qb.Args())
}

func TestMySQLParams(t *testing.T) {
	dsn := addMySQLParams("user:pass@tcp(localhost:3306)/adgate")
	assert.Contains(t, dsn, "?charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")

	dsn = addMySQLParams("user:pass@tcp(localhost:3306)/adgate?parseTime=true")
	assert.Contains(t, dsn, "&charset=utf8mb4")
	assert.Equal(t, 1, strings.Count(dsn, "parseTime=true"))
}

func TestPostgresParams(t *testing.T) {
	assert.Equal(t, "postgres://localhost/adgate?sslmode=disable&timezone=UTC", addPostgresParams("postgres://localhost/adgate"))
	assert.Equal(t, "postgres://localhost/adgate?sslmode=require&timezone=UTC", addPostgresParams("postgres://localhost/adgate?sslmode=require"))
	assert.Equal(t, "host=localhost dbname=adgate sslmode=disable", addPostgresParams("host=localhost dbname=adgate"))
}
