// Package backend opens a store.Store by driver name so binaries and the
// Forge extension can pick a backend from configuration.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/store/memory"
	"github.com/xraph/leadledger/store/mongo"
	"github.com/xraph/leadledger/store/postgres"
	"github.com/xraph/leadledger/store/sqlite"
)

// Driver names a store backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMongo    Driver = "mongo"
)

// DefaultMongoDatabase is used when Config.Database is empty.
const DefaultMongoDatabase = "leadledger"

// Config selects and locates a backend.
type Config struct {
	// Driver is one of memory, postgres, sqlite or mongo. Empty means memory.
	Driver Driver `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the postgres connection string, the sqlite file path or the
	// mongo URI.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// Database is the mongo database name.
	Database string `json:"database" mapstructure:"database" yaml:"database"`
}

// ParseDriver normalizes s and checks it names a known backend.
func ParseDriver(s string) (Driver, error) {
	d := Driver(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case "":
		return DriverMemory, nil
	case DriverMemory, DriverPostgres, DriverSQLite, DriverMongo:
		return d, nil
	case "postgresql", "pg":
		return DriverPostgres, nil
	case "sqlite3":
		return DriverSQLite, nil
	case "mongodb":
		return DriverMongo, nil
	}
	return "", fmt.Errorf("leadledger/backend: unknown driver %q", s)
}

// Open connects to the configured backend. The caller owns the returned
// store and must Close it.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	driver, err := ParseDriver(string(cfg.Driver))
	if err != nil {
		return nil, err
	}

	if driver != DriverMemory && cfg.DSN == "" {
		return nil, fmt.Errorf("leadledger/backend: %s requires a dsn", driver)
	}

	var (
		s       store.Store
		openErr error
	)
	switch driver {
	case DriverPostgres:
		s, openErr = unwrap(postgres.Open(ctx, cfg.DSN))
	case DriverSQLite:
		s, openErr = unwrap(sqlite.Open(ctx, cfg.DSN))
	case DriverMongo:
		name := cfg.Database
		if name == "" {
			name = DefaultMongoDatabase
		}
		s, openErr = unwrap(mongo.Open(ctx, cfg.DSN, name))
	default:
		s = memory.New()
	}
	if openErr != nil {
		return nil, openErr
	}
	return s, nil
}

// unwrap keeps a failed open from yielding a non-nil interface holding a nil
// pointer.
func unwrap[S store.Store](s S, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
