package schema

import (
	"fmt"
	"sort"
	"strings"
)

// CurrentVersion is written to model_metadata on every save. Bump it whenever
// a table gains columns or is renamed.
const CurrentVersion = 4

// VersionKey is the model_metadata key holding the schema version.
const VersionKey = "schema_version"

// TableRename records a table that was stored under another name before
// schema version Since.
type TableRename struct {
	From  string
	To    string
	Since int
}

// Renames lists every table rename, oldest first.
var Renames = []TableRename{
	{From: "border_crossing_changes", To: BorderCrossingChangesTable, Since: 4},
}

// Manager renders DDL for a set of tables in one dialect.
type Manager struct {
	Dialect Dialect
	Tables  []Table
}

// NewManager returns a manager for every table of the model.
func NewManager(d Dialect) *Manager {
	return &Manager{Dialect: d, Tables: AllTables()}
}

// Version returns the schema version this manager creates.
func (m *Manager) Version() int { return CurrentVersion }

// Script renders the full creation script.
func (m *Manager) Script() string {
	var b strings.Builder
	for _, t := range m.Tables {
		fmt.Fprintf(&b, "-- %s\n", t.Name)
		b.WriteString(m.createTable(t))
		b.WriteString(";\n")
		for _, idx := range m.indexes(t) {
			b.WriteString(idx)
			b.WriteString(";\n")
		}
	}
	return b.String()
}

// CreateStatements returns idempotent CREATE statements for every table and index.
func (m *Manager) CreateStatements() []string {
	return SplitStatements(m.Script())
}

func (m *Manager) createTable(t Table) string {
	var cols []string
	if t.AutoIncrementID {
		cols = append(cols, m.Dialect.IDColumn())
	}
	for _, f := range t.Fields {
		cols = append(cols, m.columnDef(f, true))
	}
	if len(t.PrimaryKey) > 0 && !t.AutoIncrementID {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	if len(t.Unique) > 0 {
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(t.Unique, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", t.Name, strings.Join(cols, ",\n    "))
}

func (m *Manager) columnDef(f Field, strict bool) string {
	def := f.Name + " " + m.Dialect.ColumnType(f.Type)
	if strict && !f.Nullable {
		def += " NOT NULL"
	}
	return def
}

type index struct {
	name   string
	column string
}

func tableIndexes(t Table) []index {
	var out []index
	if t.AutoIncrementID && len(t.Unique) == 0 && len(t.Fields) > 0 {
		first := t.Fields[0].Name
		out = append(out, index{name: fmt.Sprintf("idx_%s_%s", t.Name, first), column: first})
	}
	if _, ok := t.Field("changed_at"); ok {
		out = append(out, index{name: fmt.Sprintf("idx_%s_changed_at", t.Name), column: "changed_at"})
	}
	return out
}

func (m *Manager) indexes(t Table) []string {
	var out []string
	for _, idx := range tableIndexes(t) {
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, t.Name, idx.column))
	}
	return out
}

// LegacyNames returns the former names of managed tables.
func (m *Manager) LegacyNames() []string {
	var out []string
	for _, r := range Renames {
		if _, ok := m.Table(r.To); ok {
			out = append(out, r.From)
		}
	}
	return out
}

// RenameStatements moves tables stored under a former name to their current
// name. existing holds the table names present in the database; a rename is
// skipped when the current name already exists. The old indexes are dropped
// so CreateStatements can recreate them under the new name.
func (m *Manager) RenameStatements(existing map[string]bool) []string {
	var stmts []string
	for _, r := range Renames {
		t, ok := m.Table(r.To)
		if !ok || !existing[r.From] || existing[r.To] {
			continue
		}
		old := t
		old.Name = r.From
		for _, idx := range tableIndexes(old) {
			stmts = append(stmts, "DROP INDEX IF EXISTS "+idx.name)
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", r.From, r.To))
	}
	return stmts
}

// AddColumnStatements returns ALTER TABLE statements adding every declared
// column missing from existing, which maps table names to their current
// columns. Tables absent from existing are skipped; CreateStatements covers
// them. Added columns are always nullable so that existing rows stay valid.
func (m *Manager) AddColumnStatements(existing map[string][]string) []string {
	var stmts []string
	for _, t := range m.Tables {
		cols, ok := existing[t.Name]
		if !ok || len(cols) == 0 {
			continue
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[strings.ToLower(c)] = true
		}
		var missing []string
		for _, f := range t.Fields {
			if !have[strings.ToLower(f.Name)] {
				missing = append(missing, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", t.Name, m.columnDef(f, false)))
			}
		}
		sort.Strings(missing)
		stmts = append(stmts, missing...)
	}
	return stmts
}

// Table returns the managed table with the given name.
func (m *Manager) Table(name string) (Table, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
