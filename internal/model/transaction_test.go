package model_test

import (
	"context"
	"errors"
	"testing"

	"euroaip/internal/model"
	"euroaip/pkg/domain"
)

func TestCommitAppliesInOrder(t *testing.T) {
	m := newModel(t)
	tx := m.Begin(model.WithChangeTracking())
	if tx.State() != model.TxOpen || tx.ID() == "" {
		t.Fatalf("unexpected initial state %s", tx.State())
	}
	if err := tx.AddAirport(domain.Airport{ICAO: "EGLL", ISOCountry: domain.Ptr("GB")}); err != nil {
		t.Fatalf("queue: %v", err)
	}
	// queued against an airport added earlier in the same transaction
	if err := tx.AddAIPEntries("EGLL", []domain.AIPEntry{{Section: "ops", Field: "Hours", Source: "uk_eaip", Value: "H24"}}); err != nil {
		t.Fatalf("queue aip: %v", err)
	}
	if err := tx.AddBorderCrossingEntry(domain.BorderCrossingEntry{ICAOCode: "EGLL", CountryISO: "GB"}); err != nil {
		t.Fatalf("queue border crossing: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("operations applied before commit")
	}

	summary, err := tx.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if summary.ID != tx.ID() || len(summary.Added) != 2 || summary.Added[0] != "EGLL" || summary.Added[1] != "GB/EGLL" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	a, ok := m.Airport("EGLL")
	if !ok || !a.HasAIPData || !a.PointOfEntry {
		t.Fatalf("derived fields not recomputed: %+v", a)
	}
	if tx.State() != model.TxClosed {
		t.Fatalf("expected closed, got %s", tx.State())
	}
	if err := tx.AddAirport(domain.Airport{ICAO: "EGKK"}); !errors.Is(err, model.ErrTransactionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if _, err := tx.Commit(); !errors.Is(err, model.ErrTransactionClosed) {
		t.Fatalf("expected closed error on second commit, got %v", err)
	}
}

func TestCommitValidationFailureLeavesModelUntouched(t *testing.T) {
	m := newModel(t)
	mustAdd(t, m, domain.Airport{ICAO: "LFPG", Name: domain.Ptr("CDG")})
	tx := m.Begin()
	_ = tx.AddAirport(domain.Airport{ICAO: "LFPG", Name: domain.Ptr("Roissy")})
	_ = tx.AddAirport(domain.Airport{ICAO: "L1"})
	_ = tx.BulkAddProcedures(map[string][]domain.Procedure{"LFPG": {{Name: "", ProcedureType: "approach"}}})

	_, err := tx.Commit()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) != 2 {
		t.Fatalf("expected aggregated validation error, got %v", err)
	}
	if a, _ := m.Airport("LFPG"); *a.Name != "CDG" {
		t.Fatalf("model modified by failed commit")
	}
}

func TestCommitApplyFailureRestoresSnapshot(t *testing.T) {
	m := newModel(t)
	mustAdd(t, m, domain.Airport{ICAO: "EDDB"})
	tx := m.Begin()
	_ = tx.AddAirport(domain.Airport{ICAO: "EDDH"})
	_ = tx.RemoveByCountry("DE")
	_ = tx.AddAIPEntries("EDDT", []domain.AIPEntry{{Section: "admin", Field: "x", Source: "s"}})

	_, err := tx.Commit()
	var nf model.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected wrapped not found, got %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected snapshot restored, got %d airports", m.Len())
	}
	if _, ok := m.Airport("EDDH"); ok {
		t.Fatalf("partially applied airport survived rollback")
	}
}

func TestRollback(t *testing.T) {
	m := newModel(t)
	tx := m.Begin()
	_ = tx.AddAirport(domain.Airport{ICAO: "LSGG"})
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("rollback applied operations")
	}
	if err := tx.Rollback(); !errors.Is(err, model.ErrTransactionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestRunInTransaction(t *testing.T) {
	m := newModel(t)
	summary, err := m.RunInTransaction(context.Background(), func(tx *model.Transaction) error {
		return tx.BulkAddAirports([]domain.Airport{{ICAO: "LOWW"}, {ICAO: "LOWI"}}, model.MergeUpdateExisting)
	}, model.WithChangeTracking())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if m.Len() != 2 || len(summary.Added) != 2 {
		t.Fatalf("unexpected result %+v", summary)
	}

	boom := errors.New("boom")
	_, err = m.RunInTransaction(context.Background(), func(tx *model.Transaction) error {
		_ = tx.AddAirport(domain.Airport{ICAO: "LOWS"})
		return boom
	})
	if !errors.Is(err, boom) || m.Len() != 2 {
		t.Fatalf("expected rollback on error, got %v with %d airports", err, m.Len())
	}
}

func TestRunInTransactionPanicRollsBack(t *testing.T) {
	m := newModel(t)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_, _ = m.RunInTransaction(context.Background(), func(tx *model.Transaction) error {
			_ = tx.AddAirport(domain.Airport{ICAO: "LIRF"})
			panic("boom")
		})
	}()
	if m.Len() != 0 {
		t.Fatalf("panic left model modified")
	}
}

func TestRunInTransactionCancelledContext(t *testing.T) {
	m := newModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.RunInTransaction(ctx, func(tx *model.Transaction) error {
		return tx.AddAirport(domain.Airport{ICAO: "LIRF"})
	})
	if !errors.Is(err, context.Canceled) || m.Len() != 0 {
		t.Fatalf("expected cancellation to roll back, got %v", err)
	}
}

func TestWithoutDerivedUpdate(t *testing.T) {
	m := newModel(t)
	mustAdd(t, m, domain.Airport{ICAO: "ESSA"})
	tx := m.Begin(model.WithoutDerivedUpdate())
	_ = tx.BulkAddProcedures(map[string][]domain.Procedure{"ESSA": {{Name: "ILS 01L", ProcedureType: "approach"}}})
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	a, _ := m.Airport("ESSA")
	if a.HasProcedures {
		t.Fatalf("derived fields should not be recomputed")
	}
	m.UpdateAllDerivedFields()
	if a, _ = m.Airport("ESSA"); !a.HasProcedures {
		t.Fatalf("derived pass did not run")
	}
}

func TestChangeTrackingRemoval(t *testing.T) {
	m := newModel(t)
	mustAdd(t, m, domain.Airport{ICAO: "EKCH", ISOCountry: domain.Ptr("DK")})
	summary, err := m.RunInTransaction(context.Background(), func(tx *model.Transaction) error {
		_ = tx.AddAirport(domain.Airport{ICAO: "EKBI", ISOCountry: domain.Ptr("DK")})
		_ = tx.AddAirport(domain.Airport{ICAO: "EKCH", Name: domain.Ptr("Kastrup")})
		return tx.RemoveByCountry("DK")
	}, model.WithChangeTracking())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Added) != 0 || len(summary.Updated) != 0 || len(summary.Removed) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
