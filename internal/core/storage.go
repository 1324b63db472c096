package core

import (
	"context"
	"fmt"

	"euroaip/internal/config"
	"euroaip/internal/infra/persistence/postgres"
	"euroaip/internal/infra/persistence/relational"
	"euroaip/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistence opens the backend named by cfg.Driver, sqlite when unset,
// and brings its schema up to date.
func OpenPersistence(ctx context.Context, cfg config.Storage, opts ...relational.Option) (*relational.Engine, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, opts...)
	case StoragePostgres:
		return postgres.Open(ctx, cfg.PostgresDSN, postgres.Pool{
			MaxOpenConns:    cfg.MaxOpen,
			MaxIdleConns:    cfg.MaxIdle,
			ConnMaxLifetime: cfg.MaxLifetime,
		}, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
