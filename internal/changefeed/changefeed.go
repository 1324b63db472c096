// Package changefeed publishes committed change records to downstream consumers.
package changefeed

import (
	"context"
	"sync"
	"time"

	"euroaip/pkg/domain"
)

// Batch is every change record produced by one committed save.
type Batch struct {
	ID                    string                        `json:"id"`
	CommittedAt           time.Time                     `json:"committed_at"`
	FieldChanges          []domain.FieldChange          `json:"field_changes,omitempty"`
	BorderCrossingChanges []domain.BorderCrossingChange `json:"border_crossing_changes,omitempty"`
}

// Empty reports whether the batch carries no change.
func (b Batch) Empty() bool {
	return len(b.FieldChanges) == 0 && len(b.BorderCrossingChanges) == 0
}

// ByEntity splits field changes by entity type.
func (b Batch) ByEntity() map[domain.EntityType][]domain.FieldChange {
	out := make(map[domain.EntityType][]domain.FieldChange)
	for _, c := range b.FieldChanges {
		out[c.EntityType] = append(out[c.EntityType], c)
	}
	return out
}

// Sink receives committed batches.
type Sink interface {
	Publish(ctx context.Context, batch Batch) error
}

// Memory records published batches in memory.
type Memory struct {
	mu      sync.Mutex
	batches []Batch
}

// Publish implements Sink.
func (m *Memory) Publish(_ context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}

// Batches returns a copy of the recorded batches.
func (m *Memory) Batches() []Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Batch(nil), m.batches...)
}
