// Package relational persists the model to a SQL database, recording a
// field-level change history for every tracked attribute.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"euroaip/internal/changefeed"
	"euroaip/internal/model"
	"euroaip/internal/schema"
)

// PersistenceError wraps a failure of one engine operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Logger matches model.Logger.
type Logger = model.Logger

// MetricsRecorder observes the duration and outcome of engine operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ChangeCounter is optionally implemented by a MetricsRecorder to count the
// change records written per entity type.
type ChangeCounter interface {
	CountChanges(entity string, n int)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger; nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source of change records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics reports the duration and outcome of every engine operation to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithChangeSink publishes the change records of every committed save.
func WithChangeSink(s changefeed.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// Engine reads and writes the model through database/sql.
type Engine struct {
	db      *sql.DB
	dialect schema.Dialect
	manager *schema.Manager
	logger  Logger
	metrics MetricsRecorder
	sink    changefeed.Sink
	now     func() time.Time
}

// Open wraps db. Call EnsureSchema before the first save.
func Open(db *sql.DB, dialect schema.Dialect, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		dialect: dialect,
		manager: schema.NewManager(dialect),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DB exposes the underlying handle.
func (e *Engine) DB() *sql.DB { return e.db }

// Dialect returns the SQL dialect in use.
func (e *Engine) Dialect() schema.Dialect { return e.dialect }

// Close closes the database handle.
func (e *Engine) Close() error { return e.db.Close() }

func (e *Engine) observe(ctx context.Context, op string, start time.Time, err error) {
	e.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// EnsureSchema renames tables stored under a former name, creates missing
// tables and adds missing columns. Tables left by a layout that predates
// version tracking are dropped and recreated.
func (e *Engine) EnsureSchema(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { e.observe(ctx, "ensure_schema", start, err) }()

	existing, err := e.existingTables(ctx)
	if err != nil {
		return wrap("ensure schema", err)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("ensure schema", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if len(existing) > 0 {
		versioned, err := e.hasVersion(ctx, tx, existing)
		if err != nil {
			return wrap("ensure schema", err)
		}
		if !versioned {
			e.logger.Warn("rebuilding unversioned schema", "tables", len(existing))
			for name := range existing {
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
					return wrap("ensure schema", fmt.Errorf("drop %s: %w", name, err))
				}
			}
			existing = map[string]bool{}
		}
	}

	for _, stmt := range e.manager.RenameStatements(existing) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return wrap("ensure schema", fmt.Errorf("rename: %w", err))
		}
	}
	for _, r := range schema.Renames {
		if existing[r.From] && !existing[r.To] {
			delete(existing, r.From)
			existing[r.To] = true
			e.logger.Info("table renamed", "from", r.From, "to", r.To)
		}
	}

	for _, stmt := range e.manager.CreateStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return wrap("ensure schema", fmt.Errorf("execute ddl: %w", err))
		}
	}

	columns := make(map[string][]string)
	for _, t := range e.manager.Tables {
		if !existing[t.Name] {
			continue
		}
		cols, err := e.columns(ctx, tx, t.Name)
		if err != nil {
			return wrap("ensure schema", err)
		}
		columns[t.Name] = cols
	}
	migrations := e.manager.AddColumnStatements(columns)
	for _, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return wrap("ensure schema", fmt.Errorf("migrate: %w", err))
		}
	}
	if err := e.putMetadata(ctx, tx, schema.VersionKey, fmt.Sprint(e.manager.Version())); err != nil {
		return wrap("ensure schema", err)
	}
	if err := tx.Commit(); err != nil {
		return wrap("ensure schema", fmt.Errorf("commit: %w", err))
	}
	committed = true
	if len(migrations) > 0 {
		e.logger.Info("schema migrated", "columns_added", len(migrations), "version", e.manager.Version())
	}
	return nil
}

func (e *Engine) existingTables(ctx context.Context) (map[string]bool, error) {
	rows, err := e.db.QueryContext(ctx, e.dialect.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()
	managed := make(map[string]bool)
	for _, t := range e.manager.Tables {
		managed[t.Name] = true
	}
	for _, name := range e.manager.LegacyNames() {
		managed[name] = true
	}
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if managed[name] {
			out[name] = true
		}
	}
	return out, rows.Err()
}

func (e *Engine) hasVersion(ctx context.Context, q queryer, existing map[string]bool) (bool, error) {
	if !existing[schema.ModelMetadataTable] {
		return false, nil
	}
	_, ok, err := e.metadata(ctx, q, schema.VersionKey)
	return ok, err
}

func (e *Engine) columns(ctx context.Context, q queryer, table string) ([]string, error) {
	query, args := e.dialect.ColumnsQuery(table)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (e *Engine) putMetadata(ctx context.Context, q queryer, key, value string) error {
	t := schema.ModelMetadata
	stmt := e.dialect.Upsert(t.Name, t.Columns(), t.ConflictColumns())
	if _, err := q.ExecContext(ctx, stmt, key, value, e.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert metadata %s: %w", key, err)
	}
	return nil
}

func (e *Engine) metadata(ctx context.Context, q queryer, key string) (string, bool, error) {
	query := fmt.Sprintf("SELECT meta_value FROM %s WHERE meta_key = %s", schema.ModelMetadataTable, e.dialect.Placeholder(1))
	var value sql.NullString
	err := q.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select metadata %s: %w", key, err)
	}
	return value.String, true, nil
}

// SchemaVersion returns the stored schema version, or 0 when none is recorded.
func (e *Engine) SchemaVersion(ctx context.Context) (int, error) {
	v, ok, err := e.metadata(ctx, e.db, schema.VersionKey)
	if err != nil || !ok {
		return 0, wrap("schema version", err)
	}
	var n int
	if _, err := fmt.Sscan(v, &n); err != nil {
		return 0, wrap("schema version", fmt.Errorf("parse %q: %w", v, err))
	}
	return n, nil
}
