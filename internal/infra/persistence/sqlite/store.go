// Package sqlite opens the relational engine on a local SQLite file using the
// pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"euroaip/internal/infra/persistence/relational"
	"euroaip/internal/schema"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "euroaip.db"

// Open creates path's directory when needed, opens the database in WAL mode
// and brings the schema up to date.
func Open(ctx context.Context, path string, opts ...relational.Option) (*relational.Engine, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: saves hold a transaction for their whole write
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	engine := relational.Open(db, schema.SQLite, opts...)
	if err := engine.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return engine, nil
}
