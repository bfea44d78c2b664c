package storage

import (
	"fmt"
	"time"

	"github.com/platinummonkey/mediagate/pkg/apperr"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = fmt.Errorf("%w: record", apperr.ErrNotFound)
	// ErrDuplicate is returned when a unique index rejects an insert
	ErrDuplicate = fmt.Errorf("%w: duplicate record", apperr.ErrConflict)
	// ErrConflict is returned when a conditional update lost a race
	ErrConflict = fmt.Errorf("%w: record changed concurrently", apperr.ErrConflict)
)

// Backend names accepted by Config.Type
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "postgres", "sqlite"

	// SQL config
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnTimeout  time.Duration `yaml:"conn_timeout"`
	MaxLifetime  time.Duration `yaml:"max_lifetime"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:            BackendMemory,
		MaxOpenConns:    20,
		MaxIdleConns:    2,
		ConnTimeout:     10 * time.Second,
		MaxLifetime:     30 * time.Minute,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}
}

// DriverName maps a backend to its database/sql driver name
func (c Config) DriverName() (string, error) {
	switch c.Type {
	case BackendPostgres:
		return "postgres", nil
	case BackendSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("backend %q is not SQL-backed", c.Type)
	}
}
