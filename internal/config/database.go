package config

import (
	"fmt"
	"time"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	SlowQueryTime   time.Duration `mapstructure:"slow_query_time"`

	// Migration settings
	AutoMigrate   bool `mapstructure:"auto_migrate"`
	RollbackSteps int  `mapstructure:"rollback_steps"`
	TargetVersion int  `mapstructure:"target_version"`
}

// Validate validates database configuration
func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch c.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres, DriverPgx:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Driver)
	}

	if c.RollbackSteps < 0 || c.TargetVersion < 0 {
		return fmt.Errorf("migration steps and target version cannot be negative")
	}

	return nil
}
