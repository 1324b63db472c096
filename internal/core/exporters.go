package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

type opStats struct {
	totalMS float64
	success int64
	failed  int64
}

// ExpvarMetricsRecorder keeps per-operation totals in process and publishes
// them as one expvar variable.
type ExpvarMetricsRecorder struct {
	name    string
	mu      sync.Mutex
	ops     map[string]*opStats
	changes map[string]int64
}

// ExpvarMetricsSnapshot is the published JSON shape.
type ExpvarMetricsSnapshot struct {
	DurationsMS   map[string]float64          `json:"durations_ms_total"`
	Results       map[string]map[string]int64 `json:"results_total"`
	ChangeRecords map[string]int64            `json:"change_records_total"`
	RecordedAt    time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty. expvar panics on duplicate names.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("euroaip_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:    name,
		ops:     make(map[string]*opStats),
		changes: make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar variable name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.ops[operation]
	if !ok {
		st = &opStats{}
		r.ops[operation] = st
	}
	st.totalMS += float64(duration) / float64(time.Millisecond)
	if success {
		st.success++
	} else {
		st.failed++
	}
}

// CountChanges adds n change records written for entity.
func (r *ExpvarMetricsRecorder) CountChanges(entity string, n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.changes[entity] += int64(n)
	r.mu.Unlock()
}

// Snapshot copies the current totals.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ExpvarMetricsSnapshot{
		DurationsMS:   make(map[string]float64, len(r.ops)),
		Results:       make(map[string]map[string]int64, len(r.ops)),
		ChangeRecords: make(map[string]int64, len(r.changes)),
		RecordedAt:    time.Now().UTC(),
	}
	for op, st := range r.ops {
		snap.DurationsMS[op] = st.totalMS
		snap.Results[op] = map[string]int64{"success": st.success, "error": st.failed}
	}
	for entity, n := range r.changes {
		snap.ChangeRecords[entity] = n
	}
	return snap
}

// JSONTraceEntry is one ended span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes each ended span as a JSON line and keeps it for
// Entries.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	w       io.Writer
	clock   Clock
}

// NewJSONTracer returns a tracer writing to w; w may be nil.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	return &JSONTraceTracer{w: w, clock: systemClock{}}
}

// Entries returns a copy of the ended spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: t.clock.Now()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := s.tracer.clock.Now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     string(AuditStatusSuccess),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = string(AuditStatusError)
		entry.Error = err.Error()
	}
	s.tracer.record(entry)
}

func (t *JSONTraceTracer) record(entry JSONTraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if t.w == nil {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = t.w.Write(append(line, '\n'))
}
