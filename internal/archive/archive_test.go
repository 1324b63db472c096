package archive_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"euroaip/internal/archive"
	"euroaip/internal/blob"
	"euroaip/internal/config"
	"euroaip/internal/model"
	"euroaip/pkg/domain"
)

func memoryStore(t *testing.T) blob.Store {
	t.Helper()
	store, err := blob.Open(context.Background(), config.Blob{Driver: "memory"})
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	return store
}

func sampleModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New()
	if err := model.NewAirportBuilder("LFPG").WithName("Paris Charles de Gaulle").WithCountry("FR").
		WithCoordinates(49.0097, 2.5479).WithSources("worldairports").AddTo(m); err != nil {
		t.Fatalf("add LFPG: %v", err)
	}
	if err := model.NewAirportBuilder("EDDF").WithName("Frankfurt").WithCountry("DE").AddTo(m); err != nil {
		t.Fatalf("add EDDF: %v", err)
	}
	m.AddBorderCrossingEntry(domain.BorderCrossingEntry{ICAOCode: "LFPG", CountryISO: "FR", AirportName: "Paris CDG"})
	return m
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	a := archive.New(store)
	m := sampleModel(t)

	info, err := a.Export(ctx, m, "2505")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Key != "snapshots/2505/model.json" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}

	back, err := a.ImportCycle(ctx, "2505")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if back.Len() != 2 {
		t.Fatalf("expected 2 airports, got %d", back.Len())
	}
	got, ok := back.Airport("LFPG")
	if !ok || got.Name == nil || *got.Name != "Paris Charles de Gaulle" {
		t.Fatalf("unexpected LFPG %+v", got)
	}
	if !got.PointOfEntry {
		t.Fatalf("expected point of entry to survive import")
	}
	if entries := back.BorderCrossingEntries("FR"); len(entries) != 1 {
		t.Fatalf("expected one FR entry, got %+v", entries)
	}
}

func TestExportOverwritesCycle(t *testing.T) {
	ctx := context.Background()
	a := archive.New(memoryStore(t))
	m := sampleModel(t)
	if _, err := a.Export(ctx, m, "2505"); err != nil {
		t.Fatalf("export: %v", err)
	}
	m.RemoveByCountry("DE")
	if _, err := a.Export(ctx, m, "2505"); err != nil {
		t.Fatalf("re-export: %v", err)
	}
	snap, err := a.Read(ctx, archive.Key("2505"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snap.Airports) != 1 || snap.Statistics.Airports != 1 {
		t.Fatalf("expected overwritten snapshot, got %+v", snap.Statistics)
	}
}

func TestExportRejectsBadCycle(t *testing.T) {
	a := archive.New(memoryStore(t))
	for _, cycle := range []string{"", "  ", "25/05"} {
		if _, err := a.Export(context.Background(), model.New(), cycle); err == nil {
			t.Fatalf("expected error for cycle %q", cycle)
		}
	}
}

func TestListSkipsForeignKeys(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)
	a := archive.New(store)
	m := sampleModel(t)
	for _, cycle := range []string{"2506", "2505"} {
		if _, err := a.Export(ctx, m, cycle); err != nil {
			t.Fatalf("export %s: %v", cycle, err)
		}
	}
	if _, err := store.Put(ctx, "snapshots/2505/notes.txt", strings.NewReader("notes"), blob.PutOptions{}); err != nil {
		t.Fatalf("put notes: %v", err)
	}
	list, err := a.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Cycle != "2505" || list[1].Cycle != "2506" {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestImportMissingAndURL(t *testing.T) {
	ctx := context.Background()
	a := archive.New(memoryStore(t))
	if _, err := a.ImportCycle(ctx, "9999"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := a.URL(ctx, "2505", 0); !errors.Is(err, blob.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported from memory backend, got %v", err)
	}
}
