package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"euroaip/internal/schema"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// row maps column names to driver values. []byte values are converted to
// string so both drivers compare alike.
type row map[string]any

func (e *Engine) selectRows(ctx context.Context, q queryer, t schema.Table, where []string, order string, args ...any) ([]row, error) {
	cond := ""
	if len(where) > 0 {
		cond = schema.Where(e.dialect, where, 0)
	}
	return e.selectCond(ctx, q, t, cond, order, args...)
}

// selectCond selects every column of t filtered by a raw condition.
func (e *Engine) selectCond(ctx context.Context, q queryer, t schema.Table, cond, order string, args ...any) ([]row, error) {
	cols := t.Columns()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.Name)
	if cond != "" {
		query += " WHERE " + cond
	}
	if order != "" {
		query += " ORDER BY " + order
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		r := make(row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				r[c] = string(b)
				continue
			}
			r[c] = values[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.Name, err)
	}
	return out, nil
}

// storageArgs renders values in the table's column order.
func storageArgs(t schema.Table, values map[string]any) []any {
	args := make([]any, len(t.Fields))
	for i, f := range t.Fields {
		args[i] = f.FormatForStorage(values[f.Name])
	}
	return args
}

func (e *Engine) upsert(ctx context.Context, q queryer, t schema.Table, values map[string]any) error {
	stmt := e.dialect.Upsert(t.Name, t.Columns(), t.ConflictColumns())
	if _, err := q.ExecContext(ctx, stmt, storageArgs(t, values)...); err != nil {
		return fmt.Errorf("upsert %s: %w", t.Name, err)
	}
	return nil
}

func (e *Engine) insert(ctx context.Context, q queryer, t schema.Table, values map[string]any) error {
	stmt := schema.Insert(e.dialect, t.Name, t.Columns())
	if _, err := q.ExecContext(ctx, stmt, storageArgs(t, values)...); err != nil {
		return fmt.Errorf("insert %s: %w", t.Name, err)
	}
	return nil
}

func (e *Engine) deleteWhere(ctx context.Context, q queryer, table string, where []string, args ...any) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", table, schema.Where(e.dialect, where, 0))
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func strPtr(v any) *string {
	s := asString(v)
	if v == nil || s == "" {
		return nil
	}
	return &s
}

func int64Of(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func intPtr(v any) *int {
	n, ok := int64Of(v)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func floatPtr(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case float32:
		f := float64(x)
		return &f
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return &f
		}
		return nil
	}
	if n, ok := int64Of(v); ok {
		f := float64(n)
		return &f
	}
	return nil
}

func boolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	n, ok := int64Of(v)
	if !ok {
		return nil
	}
	b := n != 0
	return &b
}

func boolOf(v any) bool {
	b := boolPtr(v)
	return b != nil && *b
}

func timeOf(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
