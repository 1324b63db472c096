package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"euroaip/internal/archive"
	"euroaip/internal/blob"
	"euroaip/internal/config"
	"euroaip/internal/infra/persistence/sqlite"
	"euroaip/internal/model"
	"euroaip/pkg/domain"
	"euroaip/pkg/geo"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) last(op string) (AuditEntry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Operation == op {
			return c.entries[i], true
		}
	}
	return AuditEntry{}, false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls   []metricsCall
	changes map[string]int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) CountChanges(entity string, n int) {
	if c.changes == nil {
		c.changes = make(map[string]int)
	}
	c.changes[entity] += n
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	ended map[string]error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	if s.tracer.ended == nil {
		s.tracer.ended = make(map[string]error)
	}
	s.tracer.ended[s.op] = err
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "euroaip.db")
	cfg.Blob.Driver = "memory"
	return cfg
}

func openTestService(t *testing.T, cfg config.Config, opts ...Option) *Service {
	t.Helper()
	svc, err := OpenService(context.Background(), cfg, append([]Option{WithLogger(noopLogger{})}, opts...)...)
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func gatwick(elevation int) domain.Airport {
	return domain.Airport{
		ICAO:        "EGKK",
		Name:        domain.Ptr("London Gatwick"),
		Latitude:    domain.Ptr(51.1481),
		Longitude:   domain.Ptr(-0.1903),
		ElevationFt: domain.Ptr(elevation),
		ISOCountry:  domain.Ptr("GB"),
		Sources:     []string{"ourairports"},
		Runways: []domain.Runway{
			{LEIdent: "08R", HEIdent: "26L", LengthFt: domain.Ptr(10879), Surface: domain.Ptr("ASP")},
		},
	}
}

func addAirport(a domain.Airport) func(*model.Transaction) error {
	return func(tx *model.Transaction) error { return tx.AddAirport(a) }
}

func TestOpenServicePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	svc, err := OpenService(ctx, cfg, WithLogger(noopLogger{}))
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	summary, res, err := svc.Update(ctx, addAirport(gatwick(202)))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(summary.Added) != 1 || summary.Added[0] != "EGKK" || res.NewAirports != 1 {
		t.Fatalf("unexpected summary %+v result %+v", summary, res)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestService(t, cfg)
	a, ok := reopened.Model().Airport("EGKK")
	if !ok || a.ElevationFt == nil || *a.ElevationFt != 202 || len(a.Runways) != 1 {
		t.Fatalf("unexpected reloaded airport %+v", a)
	}
}

func TestUpdateCountryRemovalSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	svc, err := OpenService(ctx, cfg, WithLogger(noopLogger{}))
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.ImportBorderCrossings(ctx, strings.NewReader("icao_code,country_iso,airport_name\nEGKK,GB,Gatwick\n"), "uk_gov"); err != nil {
		t.Fatalf("import: %v", err)
	}
	_, res, err := svc.Update(ctx, func(tx *model.Transaction) error { return tx.RemoveByCountry("GB") })
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(res.Removed) != 1 || len(res.BorderCrossingChanges) != 1 {
		t.Fatalf("unexpected removal result %+v", res)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestService(t, cfg)
	if reopened.Model().Len() != 0 || reopened.Model().IsBorderCrossing("EGKK") {
		t.Fatalf("country removal undone on reload: %+v", reopened.Model().Statistics())
	}
}

func TestUpdateFailureLeavesModelUntouched(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := openTestService(t, testConfig(t), WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer))

	boom := errors.New("boom")
	_, _, err := svc.Update(ctx, func(tx *model.Transaction) error {
		if err := tx.AddAirport(gatwick(202)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if svc.Model().Len() != 0 {
		t.Fatalf("expected empty model after failed update")
	}
	entry, ok := audit.last(opUpdate)
	if !ok || entry.Status != AuditStatusError || !strings.Contains(entry.Error, "boom") {
		t.Fatalf("expected error audit entry, got %+v", entry)
	}
	if !metrics.has(opUpdate, false) {
		t.Fatalf("expected failed update metric")
	}
	if tracer.ended[opUpdate] == nil {
		t.Fatalf("expected failed update span")
	}
}

func TestUpdateRecordsHistoryAndCounts(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	reg := prometheus.NewRegistry()
	prom, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	svc := openTestService(t, testConfig(t), WithAuditRecorder(audit), WithMetricsRecorder(prom))

	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); err != nil {
		t.Fatalf("first update: %v", err)
	}
	summary, res, err := svc.Update(ctx, addAirport(gatwick(203)))
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(summary.Updated) != 1 || len(res.Changes) != 1 {
		t.Fatalf("expected one updated airport and one change, got %+v / %d", summary, len(res.Changes))
	}
	h, err := svc.History(ctx, "egkk")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if h.Len() != 1 || h.Airport[0].Field != "elevation_ft" || *h.Airport[0].NewValue != "203" {
		t.Fatalf("unexpected history %+v", h)
	}
	entry, ok := audit.last(opUpdate)
	if !ok || entry.Status != AuditStatusSuccess || entry.Changes != 1 || entry.Entity != domain.EntityAirport {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if got := testutil.ToFloat64(prom.changes.WithLabelValues("airport")); got != 1 {
		t.Fatalf("expected 1 airport change counted, got %v", got)
	}
	if got := testutil.ToFloat64(prom.results.WithLabelValues(opUpdate, "success")); got != 2 {
		t.Fatalf("expected 2 successful updates, got %v", got)
	}
}

func TestImportBorderCrossingsReplacesCountry(t *testing.T) {
	ctx := context.Background()
	svc := openTestService(t, testConfig(t))
	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); err != nil {
		t.Fatalf("update: %v", err)
	}

	first := "icao_code,country_iso,airport_name\nEGKK,GB,Gatwick\nEGLL,GB,Heathrow\nLFPG,FR,Paris CDG\n"
	res, err := svc.ImportBorderCrossings(ctx, strings.NewReader(first), "uk_gov")
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if res.Stored != 3 || len(res.Changes) != 0 {
		t.Fatalf("unexpected first import %+v", res)
	}
	a, _ := svc.Model().Airport("EGKK")
	if !a.PointOfEntry {
		t.Fatalf("expected EGKK to become a point of entry")
	}

	second := "icao_code,country_iso,airport_name\nEGKK,GB,Gatwick\nEGSS,GB,Stansted\n"
	res, err = svc.ImportBorderCrossings(ctx, strings.NewReader(second), "uk_gov")
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if len(res.Changes) != 2 || res.Changes[0].Action != domain.BorderCrossingAdded || res.Changes[1].ICAOCode != "EGLL" {
		t.Fatalf("unexpected changes %+v", res.Changes)
	}
	if got := svc.Model().BorderCrossingEntries("FR"); len(got) != 1 {
		t.Fatalf("expected FR untouched, got %+v", got)
	}
	if svc.Model().IsBorderCrossing("EGLL") {
		t.Fatalf("expected EGLL removed from index")
	}
}

func TestArchiveAndRestore(t *testing.T) {
	ctx := context.Background()
	svc := openTestService(t, testConfig(t))
	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.Archive(ctx, "2505"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, _, err := svc.Update(ctx, addAirport(gatwick(250))); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := svc.Archives(ctx)
	if err != nil || len(list) != 1 || list[0].Cycle != "2505" {
		t.Fatalf("unexpected archives %+v %v", list, err)
	}
	res, err := svc.RestoreArchive(ctx, "2505")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("expected the restore to record one change, got %d", len(res.Changes))
	}
	a, _ := svc.Model().Airport("EGKK")
	if *a.ElevationFt != 202 {
		t.Fatalf("expected restored elevation, got %d", *a.ElevationFt)
	}
	set, err := svc.ChangesSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("changes since: %v", err)
	}
	if len(set.FieldChanges) != 2 {
		t.Fatalf("expected two elevation changes, got %+v", set.FieldChanges)
	}
}

func TestArchiveDisabledWithoutArchiver(t *testing.T) {
	ctx := context.Background()
	engine, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := NewService(engine)
	defer func() { _ = svc.Close() }()
	if _, err := svc.Archive(ctx, "2505"); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("expected ErrArchiveDisabled, got %v", err)
	}
	if _, err := svc.Archives(ctx); !errors.Is(err, ErrArchiveDisabled) {
		t.Fatalf("expected ErrArchiveDisabled, got %v", err)
	}

	store, err := blob.Open(ctx, config.Blob{Driver: "memory"})
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded before Load, got %v", err)
	}
	if _, err := svc.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); err != nil {
		t.Fatalf("update after load: %v", err)
	}
	withArchive := NewService(engine, WithArchiver(archive.New(store)))
	if _, err := withArchive.Archive(ctx, "2505"); err != nil {
		t.Fatalf("archive with archiver: %v", err)
	}
}

func TestNearRouteUsesLiveModel(t *testing.T) {
	ctx := context.Background()
	svc := openTestService(t, testConfig(t))
	if _, _, err := svc.Update(ctx, addAirport(gatwick(202))); err != nil {
		t.Fatalf("update: %v", err)
	}
	route := []geo.Point{{Lat: 51.0, Lon: -1.0}, {Lat: 51.3, Lon: 0.5}}
	matches := svc.NearRoute(route, 20)
	if len(matches) != 1 || matches[0].Airport.ICAO != "EGKK" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestRecordAuditIgnoresReadOperations(t *testing.T) {
	fixed := time.Date(2025, 5, 15, 8, 30, 0, 0, time.UTC)
	audit := &captureAuditRecorder{}
	svc := newService([]Option{WithAuditRecorder(audit), WithClock(ClockFunc(func() time.Time { return fixed }))})

	svc.recordAudit(context.Background(), opHistory, "EGKK", 0, time.Millisecond, nil)
	if len(audit.entries) != 0 {
		t.Fatalf("expected no audit entry for a read, got %+v", audit.entries)
	}
	svc.recordAudit(context.Background(), opArchive, "2505", 0, 42*time.Millisecond, nil)
	entry := audit.entries[0]
	if entry.Action != ActionExport || entry.EntityID != "2505" || !entry.Timestamp.Equal(fixed) || entry.Duration != 42*time.Millisecond {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
