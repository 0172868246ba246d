package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"adgate/internal/config"
	"adgate/internal/database/migration"
	"adgate/internal/types"
)

// New creates new database instance based on configuration
func New(cfg *config.DatabaseConfig, logger *zap.Logger) (Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	// Create a new database instance
	db, err := newInstance(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run migrations
	if cfg.AutoMigrate {
		if err := runMigrations(db, cfg, logger); err != nil {
			logger.Error("Failed to run migrations", zap.Error(err))
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// newInstance creates new database instance based on configuration
func newInstance(cfg *config.DatabaseConfig, logger *zap.Logger) (Interface, error) {
	opts := Options{
		MaxOpenConns:       cfg.MaxConnections,
		MaxIdleConns:       cfg.MaxIdleConns,
		ConnMaxLifetime:    cfg.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.ConnMaxLifetime,
		QueryTimeout:       cfg.QueryTimeout,
		SlowQueryThreshold: cfg.SlowQueryTime,
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLiteDatabase(cfg.DSN, opts, logger)
	case config.DriverMySQL:
		return NewMySQLDatabase(cfg.DSN, opts, logger)
	case config.DriverPostgres:
		return NewPostgresDatabase(cfg.DSN, opts, logger)
	case config.DriverPgx:
		return NewPgxDatabase(cfg.DSN, opts, logger)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidDriver, cfg.Driver)
	}
}

// runMigrations runs database migrations based on the configuration
func runMigrations(db Interface, cfg *config.DatabaseConfig, logger *zap.Logger) error {
	// SQLite runs on the live handle (an in-memory database only exists
	// there); server databases get a dedicated connection the migrator
	// may close.
	target := db
	var opts []migration.Option
	if db.Dialect() == DialectSQLite {
		opts = append(opts, migration.WithSharedDB())
	} else {
		dedicated, err := newInstance(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create database connection for migrations: %w", err)
		}
		target = dedicated
	}

	migrator, err := migration.NewMigrator(target.Unwrap(), db.Dialect(), logger, opts...)
	if err != nil {
		if target != db {
			_ = target.Close()
		}
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error("Failed to close migrator", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch {
	case cfg.RollbackSteps > 0:
		logger.Info("Rolling back migrations", zap.Int("steps", cfg.RollbackSteps))
		if err := migrator.RollbackMigrations(ctx, cfg.RollbackSteps); err != nil {
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}
	case cfg.TargetVersion > 0:
		logger.Info("Migrating to target version", zap.Int("target_version", cfg.TargetVersion))
		if err := migrator.MigrateToVersion(ctx, uint(cfg.TargetVersion)); err != nil {
			return fmt.Errorf("failed to migrate to target version: %w", err)
		}
	default:
		logger.Info("Running migrations to latest version")
		if err := migrator.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return nil
}
