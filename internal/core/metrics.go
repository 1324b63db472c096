package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records operation latency, outcomes and written change
// records as Prometheus collectors.
type PrometheusMetrics struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	changes   *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors on reg. Registering twice on
// the same registry reuses the collectors already there.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "euroaip",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "euroaip",
			Name:      "operations_total",
			Help:      "Store operations by outcome.",
		}, []string{"operation", "status"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "euroaip",
			Name:      "change_records_total",
			Help:      "Change history records written, by entity.",
		}, []string{"entity"}),
	}
	var err error
	if m.durations, err = register(reg, m.durations); err != nil {
		return nil, err
	}
	if m.results, err = register(reg, m.results); err != nil {
		return nil, err
	}
	if m.changes, err = register(reg, m.changes); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
	m.results.WithLabelValues(operation, status).Inc()
}

// CountChanges adds n change records written for entity.
func (m *PrometheusMetrics) CountChanges(entity string, n int) {
	if n <= 0 {
		return
	}
	m.changes.WithLabelValues(entity).Add(float64(n))
}
