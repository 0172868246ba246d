// Package migration applies the embedded schema migrations.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql
var migrations embed.FS

// Option configures a Migrator
type Option func(*Migrator)

// WithSharedDB leaves the database handle open on Close
func WithSharedDB() Option {
	return func(m *Migrator) {
		m.shared = true
	}
}

// Migrator handles database migrations
type Migrator struct {
	dialect string
	migrate *migrate.Migrate
	source  source.Driver
	shared  bool
	logger  *zap.Logger
}

// NewMigrator creates a new migrator instance for dialect
// (sqlite, mysql or postgres)
func NewMigrator(db *sql.DB, dialect string, logger *zap.Logger, opts ...Option) (*Migrator, error) {
	src, err := iofs.New(migrations, "sql/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("no migrations for %s: %w", dialect, err)
	}

	var driver database.Driver
	switch dialect {
	case "sqlite":
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "mysql":
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		err = fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create %s driver: %w", dialect, err)
	}

	instance, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create migrator instance: %w", err)
	}

	m := &Migrator{
		dialect: dialect,
		migrate: instance,
		source:  src,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RunMigrations executes pending migrations
func (m *Migrator) RunMigrations(ctx context.Context) error {
	m.logger.Info("Starting migrations...", zap.String("dialect", m.dialect))

	err := m.run(ctx, func() error {
		if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("Migration failed", zap.Error(err))
		return err
	}

	m.logger.Info("Migrations completed successfully")
	return nil
}

// RollbackMigrations rolls back the last `steps` migrations
func (m *Migrator) RollbackMigrations(ctx context.Context, steps int) error {
	err := m.run(ctx, func() error {
		if err := m.migrate.Steps(-steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("Rollback failed", zap.Error(err))
	}
	return err
}

// MigrateToVersion migrates to a specific version
func (m *Migrator) MigrateToVersion(ctx context.Context, version uint) error {
	err := m.run(ctx, func() error {
		if err := m.migrate.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		return nil
	})
	if err != nil {
		m.logger.Error("Migration to version failed", zap.Error(err))
	}
	return err
}

// run executes fn, asking migrate to stop early when ctx is done
func (m *Migrator) run(ctx context.Context, fn func() error) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- fn()
	}()

	select {
	case <-ctx.Done():
		select {
		case m.migrate.GracefulStop <- true:
		default:
		}
		return fmt.Errorf("migration cancelled: %w", ctx.Err())
	case err := <-errChan:
		return err
	}
}

// GetVersion returns the current migration version
func (m *Migrator) GetVersion() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases resources
func (m *Migrator) Close() error {
	if m.shared {
		if err := m.source.Close(); err != nil {
			return fmt.Errorf("failed to close migrator: source error: %v", err)
		}
		return nil
	}

	sourceErr, dbErr := m.migrate.Close()
	if sourceErr == nil && dbErr == nil {
		return nil
	}

	var errMsg string
	if sourceErr != nil {
		errMsg = fmt.Sprintf("source error: %v", sourceErr)
	}
	if dbErr != nil {
		if errMsg != "" {
			errMsg += "; "
		}
		errMsg += fmt.Sprintf("database error: %v", dbErr)
	}

	return fmt.Errorf("failed to close migrator: %s", errMsg)
}
