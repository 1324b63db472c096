package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"euroaip/internal/model"
	"euroaip/pkg/domain"
)

func TestOpenPersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "airports.db")
	engine, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := model.New()
	if err := m.Add(domain.Airport{ICAO: "LSZH", Name: domain.Ptr("Zurich"), ISOCountry: domain.Ptr("CH")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := engine.SaveModel(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	loaded, err := reopened.LoadModel(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, ok := loaded.Airport("LSZH")
	if !ok || *a.Name != "Zurich" {
		t.Fatalf("expected persisted airport, got %+v", a)
	}
}

func TestOpenUsesWAL(t *testing.T) {
	engine, err := Open(context.Background(), filepath.Join(t.TempDir(), "wal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	var mode string
	if err := engine.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal, got %s", mode)
	}
}
