// Package testutil provides an in-memory database/sql driver that understands
// the statements the relational engine renders for Postgres.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
)

// Conn records statements and keeps inserted rows per table.
type Conn struct {
	Execs     []string
	Tables    map[string][]map[string]any
	FailPing  bool
	FailBegin bool
	FailExec  map[string]bool
}

var registered atomic.Int64

// NewStubDB registers a fresh driver instance and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *Conn) {
	conn := &Conn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("pgstub%d", registered.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

// Opener returns a sql.Open replacement that ignores its arguments and
// returns db.
func Opener(db *sql.DB) func(string, string) (*sql.DB, error) {
	return func(string, string) (*sql.DB, error) { return db, nil }
}

type stubDriver struct{ conn *Conn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *Conn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *Conn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *Conn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. Transactions are not isolated.
func (c *Conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return stubTx{}, nil
}

// Executed reports whether any recorded statement contains fragment.
func (c *Conn) Executed(fragment string) bool {
	for _, q := range c.Execs {
		if strings.Contains(q, fragment) {
			return true
		}
	}
	return false
}

// ExecContext implements driver.ExecerContext.
func (c *Conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if c.FailExec[table] {
			return nil, fmt.Errorf("exec fail for %s", table)
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		r := make(map[string]any, len(cols))
		for i, col := range cols {
			r[col] = args[i].Value
		}
		if conflict := parseConflict(query); len(conflict) > 0 {
			var kept []map[string]any
			for _, existing := range c.Tables[table] {
				if !sameKey(existing, r, conflict) {
					kept = append(kept, existing)
				}
			}
			c.Tables[table] = kept
		}
		c.Tables[table] = append(c.Tables[table], r)
	case strings.HasPrefix(upper, "DELETE FROM"):
		table, where, err := parseDelete(query)
		if err != nil {
			return nil, err
		}
		var kept []map[string]any
		for _, r := range c.Tables[table] {
			if !matches(r, where, args) {
				kept = append(kept, r)
			}
		}
		c.Tables[table] = kept
	default:
		for table := range c.FailExec {
			if strings.Contains(query, table) {
				return nil, fmt.Errorf("exec fail for %s", table)
			}
		}
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *Conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	table, cols, where, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	var values [][]driver.Value
	for _, r := range c.Tables[table] {
		if !matches(r, where, args) {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = r[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func sameKey(a, b map[string]any, cols []string) bool {
	for _, c := range cols {
		if a[c] != b[c] {
			return false
		}
	}
	return true
}

// matches applies "col = $n" predicates; other predicates are ignored.
func matches(r map[string]any, where []string, args []driver.NamedValue) bool {
	for _, pred := range where {
		parts := strings.SplitN(pred, "=", 2)
		if len(parts) != 2 {
			continue
		}
		col := strings.ToLower(strings.TrimSpace(parts[0]))
		rhs := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(rhs, "$") {
			continue
		}
		n, err := strconv.Atoi(rhs[1:])
		if err != nil || n < 1 || n > len(args) {
			continue
		}
		if r[col] != args[n-1].Value {
			return false
		}
	}
	return true
}

func splitWhere(clause string) []string {
	clause = strings.TrimSpace(clause)
	if i := strings.Index(strings.ToUpper(clause), " ORDER BY "); i >= 0 {
		clause = clause[:i]
	}
	if clause == "" {
		return nil
	}
	return strings.Split(clause, " AND ")
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	return strings.ToLower(strings.TrimSpace(rest[:open])), splitColumns(rest[open+1 : closeIdx]), nil
}

func parseConflict(query string) []string {
	up := strings.ToUpper(query)
	idx := strings.Index(up, "ON CONFLICT (")
	if idx == -1 {
		return nil
	}
	rest := query[idx+len("ON CONFLICT ("):]
	end := strings.Index(rest, ")")
	if end == -1 {
		return nil
	}
	return splitColumns(rest[:end])
}

func parseDelete(query string) (string, []string, error) {
	rest := strings.TrimSpace(query[len("DELETE FROM "):])
	whereIdx := strings.Index(strings.ToUpper(rest), " WHERE ")
	if whereIdx == -1 {
		return strings.ToLower(strings.TrimSpace(rest)), nil, nil
	}
	return strings.ToLower(strings.TrimSpace(rest[:whereIdx])), splitWhere(rest[whereIdx+len(" WHERE "):]), nil
}

func parseSelect(query string) (string, []string, []string, error) {
	lower := strings.ToLower(query)
	if !strings.HasPrefix(strings.TrimSpace(lower), "select ") {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	start := strings.Index(lower, "select ") + len("select ")
	cols := splitColumns(query[start:fromIdx])
	rest := strings.TrimSpace(query[fromIdx+len(" from "):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, nil, fmt.Errorf("cannot parse select: %s", query)
	}
	table := strings.ToLower(fields[0])
	var where []string
	if i := strings.Index(strings.ToUpper(rest), " WHERE "); i >= 0 {
		where = splitWhere(rest[i+len(" WHERE "):])
	}
	return table, cols, where, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
