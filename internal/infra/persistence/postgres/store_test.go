package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"euroaip/internal/infra/persistence/postgres/testutil"
	"euroaip/internal/model"
	"euroaip/internal/schema"
	"euroaip/pkg/domain"
)

func TestOpenAppliesPostgresSchema(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(testutil.Opener(db))
	defer restore()

	engine, err := Open(context.Background(), "", Pool{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if engine.Dialect().Name() != "postgres" {
		t.Fatalf("unexpected dialect %s", engine.Dialect().Name())
	}
	for _, fragment := range []string{
		"CREATE TABLE IF NOT EXISTS airports",
		"id BIGSERIAL PRIMARY KEY",
		"DOUBLE PRECISION",
		"ON CONFLICT (meta_key)",
	} {
		if !conn.Executed(fragment) {
			t.Fatalf("expected a statement containing %q", fragment)
		}
	}
	v, err := engine.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if v != schema.CurrentVersion {
		t.Fatalf("expected version %d, got %d", schema.CurrentVersion, v)
	}
}

func TestOpenReportsPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(testutil.Opener(db))
	defer restore()

	if _, err := Open(context.Background(), "postgres://example/db", Pool{}); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestOpenReportsDriverFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := Open(context.Background(), "", Pool{}); err == nil {
		t.Fatalf("expected open failure")
	}
}

func TestSaveUsesNumberedPlaceholders(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(testutil.Opener(db))
	defer restore()
	ctx := context.Background()
	engine, err := Open(ctx, "", Pool{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := model.New()
	if err := m.Add(domain.Airport{ICAO: "LFPG", Name: domain.Ptr("Paris Charles de Gaulle"), ISOCountry: domain.Ptr("FR")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := engine.SaveModel(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !conn.Executed("ON CONFLICT (icao_code) DO UPDATE SET name = EXCLUDED.name") {
		t.Fatalf("airport upsert not rendered for postgres")
	}
	if got := conn.Tables[schema.AirportsTable]; len(got) != 1 || got[0]["name"] != "Paris Charles de Gaulle" {
		t.Fatalf("unexpected stored airports %v", got)
	}
}

// TestLiveDatabase runs against a real server when EUROAIP_TEST_POSTGRES_DSN is set.
func TestLiveDatabase(t *testing.T) {
	dsn := os.Getenv("EUROAIP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EUROAIP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	engine, err := Open(ctx, dsn, Pool{MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = engine.Close() }()
	m := model.New()
	if err := m.Add(domain.Airport{ICAO: "EDDF", Name: domain.Ptr("Frankfurt"), ISOCountry: domain.Ptr("DE")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := engine.SaveModel(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := engine.LoadModel(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := loaded.Airport("EDDF"); !ok {
		t.Fatalf("airport not persisted")
	}
}
