package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"euroaip/internal/config"
)

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()
	var logger noopLogger
	logger.Debug("msg", "k", "v")
	logger.Info("msg")
	logger.Warn("msg")
	logger.Error("msg")
	noopMetricsRecorder{}.Observe(ctx, "op", true, time.Second)
	noopAuditRecorder{}.Record(ctx, AuditEntry{})
	_, span := noopTracer{}.Start(ctx, "op")
	span.End(errors.New("ignored"))
}

func TestNewLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "icao", "EGLL")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn: %s", out)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", out, err)
	}
	if line["msg"] != "shown" || line["icao"] != "EGLL" {
		t.Fatalf("unexpected line %+v", line)
	}

	buf.Reset()
	NewLogger(config.Log{Level: "bogus"}, &buf).Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("unknown level should default to info")
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()
	m.Observe(ctx, "save_model", true, 20*time.Millisecond)
	m.Observe(ctx, "save_model", false, 5*time.Millisecond)
	m.Observe(ctx, "", true, time.Second)
	m.CountChanges("runway", 3)
	m.CountChanges("runway", 0)

	if got := testutil.ToFloat64(m.results.WithLabelValues("save_model", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if got := testutil.ToFloat64(m.changes.WithLabelValues("runway")); got != 3 {
		t.Fatalf("expected 3 runway changes, got %v", got)
	}
	if n := testutil.CollectAndCount(m.durations); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}

	again, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	again.CountChanges("runway", 1)
	if got := testutil.ToFloat64(m.changes.WithLabelValues("runway")); got != 4 {
		t.Fatalf("expected shared collectors, got %v", got)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "load_model", true, 1500*time.Microsecond)
	rec.Observe(context.Background(), "load_model", false, time.Millisecond)
	rec.CountChanges("airport", 2)

	snap := rec.Snapshot()
	if snap.DurationsMS["load_model"] != 2.5 {
		t.Fatalf("unexpected duration total %v", snap.DurationsMS)
	}
	if snap.Results["load_model"]["success"] != 1 || snap.Results["load_model"]["error"] != 1 {
		t.Fatalf("unexpected results %v", snap.Results)
	}
	if snap.ChangeRecords["airport"] != 2 {
		t.Fatalf("unexpected change counts %v", snap.ChangeRecords)
	}
	if v := expvar.Get(rec.Name()); v == nil || !strings.Contains(v.String(), "change_records_total") {
		t.Fatalf("expected published expvar %s", rec.Name())
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "save_model")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "load_model")
	span.End(errors.New("disk full"))

	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Status != "success" || entries[1].Error != "disk full" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected two json lines, got %d", lines)
	}
}
