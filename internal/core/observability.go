// Package core wires configuration, storage, the snapshot archive and the
// change feed into a Service and instruments every Service operation.
package core

import (
	"context"
	"time"

	"euroaip/pkg/domain"
)

// Logger is the structured logger used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MetricsRecorder observes the outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts one span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus is the outcome recorded in an AuditEntry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditAction names what an audited operation did to its entity.
type AuditAction string

const (
	ActionSave    AuditAction = "save"
	ActionUpdate  AuditAction = "update"
	ActionReplace AuditAction = "replace"
	ActionExport  AuditAction = "export"
	ActionRestore AuditAction = "restore"
)

// AuditEntry describes one completed write operation.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    AuditAction
	EntityID  string
	Status    AuditStatus
	Error     string
	Changes   int
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for write operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type auditMeta struct {
	entity domain.EntityType
	action AuditAction
}

// Read-only operations are absent and never audited.
var auditedOperations = map[string]auditMeta{
	opSave:                  {domain.EntityAirport, ActionSave},
	opUpdate:                {domain.EntityAirport, ActionUpdate},
	opImportBorderCrossings: {domain.EntityBorderCrossing, ActionReplace},
	opArchive:               {domain.EntityAirport, ActionExport},
	opRestoreArchive:        {domain.EntityAirport, ActionRestore},
}
