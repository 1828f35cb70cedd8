package db

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnsupportedDriver is returned when Driver is neither sqlite nor postgres.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrMissingDSN is returned when DSN is empty.
	ErrMissingDSN = errors.New("database DSN is required")
	// ErrInvalidOpenTimeout is returned when OpenTimeout is not positive.
	ErrInvalidOpenTimeout = errors.New("OpenTimeout must be positive")
)

// Config holds the store connection settings.
type Config struct {
	// Driver is the database/sql driver name: "sqlite" or "postgres".
	Driver string `koanf:"driver"`

	// DSN is a file path (or ":memory:") for sqlite, a connection URL for postgres.
	DSN string `koanf:"dsn"`

	// MaxOpenConns caps the postgres pool. Ignored for sqlite.
	MaxOpenConns int `koanf:"max_open_conns"`

	// OpenTimeout bounds connect plus migrations.
	OpenTimeout time.Duration `koanf:"open_timeout"`

	// BusyTimeout is how long sqlite waits on a locked database.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// DefaultConfig returns a Config for a local sqlite file.
func DefaultConfig() Config {
	return Config{
		Driver:       string(DialectSQLite),
		DSN:          "threadview.db",
		MaxOpenConns: 10,
		OpenTimeout:  30 * time.Second,
		BusyTimeout:  5 * time.Second,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	switch Dialect(c.Driver) {
	case DialectSQLite, DialectPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
	if c.DSN == "" {
		return ErrMissingDSN
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidOpenTimeout, c.OpenTimeout)
	}
	return nil
}

// Dialect returns the SQL dialect for the configured driver.
func (c Config) Dialect() Dialect {
	return Dialect(c.Driver)
}

func (c Config) inMemory() bool {
	return c.DSN == ":memory:" || strings.Contains(c.DSN, "mode=memory")
}
