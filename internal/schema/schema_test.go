package schema

import (
	"strings"
	"testing"
	"time"
)

func TestFormatForComparisonTreatsEmptyAsNull(t *testing.T) {
	f := Field{Name: "name", Type: TypeString}
	empty := ""
	for _, v := range []any{nil, "", "None", (*string)(nil), &empty} {
		if got := f.FormatForComparison(v); got != nil {
			t.Fatalf("expected nil for %#v, got %q", v, *got)
		}
	}
	if got := f.FormatForComparison("Heathrow"); got == nil || *got != "Heathrow" {
		t.Fatalf("unexpected %v", got)
	}
}

func TestFormatForComparisonNormalizesNumbers(t *testing.T) {
	lat := Field{Name: "latitude_deg", Type: TypeFloat}
	a := lat.FormatForComparison(51.4775)
	b := lat.FormatForComparison("51.47750")
	if a == nil || b == nil || *a != *b {
		t.Fatalf("expected equal float renderings, got %v and %v", a, b)
	}
	whole := lat.FormatForComparison(float64(5))
	if whole == nil || *whole != "5" {
		t.Fatalf("expected shortest float rendering, got %v", whole)
	}

	elev := Field{Name: "elevation_ft", Type: TypeInteger}
	x := 83
	if got := elev.FormatForComparison(&x); got == nil || *got != "83" {
		t.Fatalf("unexpected %v", got)
	}
	if got := elev.FormatForComparison(int64(83)); got == nil || *got != "83" {
		t.Fatalf("unexpected %v", got)
	}
}

func TestFormatForComparisonBooleans(t *testing.T) {
	f := Field{Name: "lighted", Type: TypeBoolean}
	if got := f.FormatForComparison(true); *got != "1" {
		t.Fatalf("expected 1, got %s", *got)
	}
	if got := f.FormatForComparison(int64(0)); *got != "0" {
		t.Fatalf("expected 0, got %s", *got)
	}
	if got := f.FormatForComparison(int64(7)); *got != "1" {
		t.Fatalf("expected 1, got %s", *got)
	}
}

func TestFormatForStorage(t *testing.T) {
	f := Field{Name: "x"}
	if got := f.FormatForStorage(true); got != int64(1) {
		t.Fatalf("expected 1, got %#v", got)
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	if got := f.FormatForStorage(ts); got != "2024-03-01T11:00:00Z" {
		t.Fatalf("unexpected time rendering %#v", got)
	}
	if got := f.FormatForStorage((*float64)(nil)); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
	v := 1.5
	if got := f.FormatForStorage(&v); got != 1.5 {
		t.Fatalf("expected 1.5, got %#v", got)
	}
}

func TestCreateStatements(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		stmts := NewManager(d).CreateStatements()
		tables := 0
		for _, stmt := range stmts {
			if strings.HasPrefix(stmt, "--") {
				t.Fatalf("%s: statement starts with comment: %q", d.Name(), stmt)
			}
			if !strings.HasSuffix(stmt, ";") {
				t.Fatalf("%s: statement missing terminator: %q", d.Name(), stmt)
			}
			if strings.HasPrefix(stmt, "CREATE TABLE") {
				tables++
			}
		}
		if tables != len(AllTables()) {
			t.Fatalf("%s: expected %d tables, got %d", d.Name(), len(AllTables()), tables)
		}
	}
}

func TestAddColumnStatements(t *testing.T) {
	m := NewManager(SQLite)
	existing := map[string][]string{
		AirportsTable: {"icao_code", "name"},
	}
	stmts := m.AddColumnStatements(existing)
	if len(stmts) != len(Airports.Fields)-2 {
		t.Fatalf("expected %d statements, got %d", len(Airports.Fields)-2, len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "ALTER TABLE airports ADD COLUMN") || strings.Contains(s, "NOT NULL") {
			t.Fatalf("unexpected statement %q", s)
		}
	}
	if got := m.AddColumnStatements(map[string][]string{AirportsTable: Airports.Columns()}); len(got) != 0 {
		t.Fatalf("complete table should need no migration, got %v", got)
	}
}

func TestUpsertRendering(t *testing.T) {
	cols := []string{"icao_code", "name"}
	if got := SQLite.Upsert("airports", cols, []string{"icao_code"}); got != "INSERT OR REPLACE INTO airports (icao_code, name) VALUES (?, ?)" {
		t.Fatalf("unexpected sqlite upsert %q", got)
	}
	want := "INSERT INTO airports (icao_code, name) VALUES ($1, $2) ON CONFLICT (icao_code) DO UPDATE SET name = EXCLUDED.name"
	if got := Postgres.Upsert("airports", cols, []string{"icao_code"}); got != want {
		t.Fatalf("unexpected postgres upsert %q", got)
	}
	if got := Where(Postgres, []string{"a", "b"}, 2); got != "a = $3 AND b = $4" {
		t.Fatalf("unexpected where %q", got)
	}
}

func TestTrackedFields(t *testing.T) {
	for _, f := range Airports.TrackedFields() {
		if strings.HasPrefix(f.Name, "has_") || f.Name == "icao_code" {
			t.Fatalf("derived or key field %s must not be tracked", f.Name)
		}
	}
	if len(Procedures.TrackedFields()) != 0 {
		t.Fatalf("procedures are diffed as a set")
	}
	if tbl, ok := ChangeTableFor(AIPEntries.Entity); !ok || tbl.Name != AIPEntryChangesTable {
		t.Fatalf("unexpected change table %v", tbl.Name)
	}
}

func TestSplitStatementsKeepsTail(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (x INTEGER);\n\nCREATE TABLE b (y TEXT)")
	if len(stmts) != 2 || stmts[1] != "CREATE TABLE b (y TEXT)" {
		t.Fatalf("unexpected split %q", stmts)
	}
}

func TestSplitStatementsRespectsQuotesAndComments(t *testing.T) {
	script := "CREATE TABLE a (x TEXT DEFAULT 'a;b'); -- trailing note\nINSERT INTO a (x) VALUES ('--not a comment');\n"
	stmts := SplitStatements(script)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %q", stmts)
	}
	if stmts[0] != "CREATE TABLE a (x TEXT DEFAULT 'a;b');" {
		t.Fatalf("unexpected first statement %q", stmts[0])
	}
	if stmts[1] != "INSERT INTO a (x) VALUES ('--not a comment');" {
		t.Fatalf("unexpected second statement %q", stmts[1])
	}
}

func TestRenameStatements(t *testing.T) {
	m := NewManager(Postgres)
	stmts := m.RenameStatements(map[string]bool{"border_crossing_changes": true})
	want := []string{
		"DROP INDEX IF EXISTS idx_border_crossing_changes_icao_code",
		"DROP INDEX IF EXISTS idx_border_crossing_changes_changed_at",
		"ALTER TABLE border_crossing_changes RENAME TO border_crossing_points_changes",
	}
	if strings.Join(stmts, ";") != strings.Join(want, ";") {
		t.Fatalf("unexpected rename statements %v", stmts)
	}
	both := map[string]bool{"border_crossing_changes": true, BorderCrossingChangesTable: true}
	if got := m.RenameStatements(both); len(got) != 0 {
		t.Fatalf("rename must be skipped when the new table exists, got %v", got)
	}
	if got := m.LegacyNames(); len(got) != 1 || got[0] != "border_crossing_changes" {
		t.Fatalf("unexpected legacy names %v", got)
	}
}
