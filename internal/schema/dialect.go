package schema

import (
	"fmt"
	"strings"
)

// Dialect renders SQL for one database engine.
type Dialect interface {
	Name() string
	ColumnType(Type) string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	IDColumn() string
	// Upsert renders an insert that replaces the row conflicting on conflict.
	Upsert(table string, columns, conflict []string) string
	// ColumnsQuery returns a query yielding one column name per row for table.
	ColumnsQuery(table string) (string, []any)
	// TablesQuery returns a query yielding one user table name per row.
	TablesQuery() string
}

// SQLite is the dialect of modernc.org/sqlite.
var SQLite Dialect = sqliteDialect{}

// Postgres is the dialect of Postgres reached through pgx's database/sql driver.
var Postgres Dialect = postgresDialect{}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) ColumnType(t Type) string {
	switch t {
	case TypeInteger, TypeBoolean:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) IDColumn() string { return "id INTEGER PRIMARY KEY AUTOINCREMENT" }

func (d sqliteDialect) Upsert(table string, columns, _ []string) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)))
}

func (sqliteDialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT name FROM pragma_table_info(?)`, []any{table}
}

func (sqliteDialect) TablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) ColumnType(t Type) string {
	switch t {
	case TypeInteger, TypeBoolean:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) IDColumn() string { return "id BIGSERIAL PRIMARY KEY" }

func (d postgresDialect) Upsert(table string, columns, conflict []string) string {
	isConflict := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		isConflict[c] = true
	}
	var sets []string
	for _, c := range columns {
		if !isConflict[c] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)), strings.Join(conflict, ", "))
	if len(sets) == 0 {
		return stmt + " DO NOTHING"
	}
	return stmt + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func (postgresDialect) ColumnsQuery(table string) (string, []any) {
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`, []any{table}
}

func (postgresDialect) TablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()`
}

func placeholders(d Dialect, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

// Insert renders a plain insert of columns into table.
func Insert(d Dialect, table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders(d, len(columns)))
}

// Where renders "a = ? AND b = ?" with placeholders starting at offset+1.
func Where(d Dialect, columns []string, offset int) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s = %s", c, d.Placeholder(offset+i+1))
	}
	return strings.Join(parts, " AND ")
}
