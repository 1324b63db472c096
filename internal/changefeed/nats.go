package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"euroaip/pkg/domain"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "euroaip.changes"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type flusher interface {
	FlushWithContext(ctx context.Context) error
}

// NATSSink publishes one JSON message per entity type and batch to
// "<prefix>.<entity>".
type NATSSink struct {
	pub    Publisher
	prefix string
}

// NewNATSSink wraps an established publisher.
func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

// DialNATS connects to url and returns a sink with the connection.
func DialNATS(url, prefix string) (*NATSSink, *nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("euroaip-changefeed"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSSink(conn, prefix), conn, nil
}

type message struct {
	BatchID     string                        `json:"batch_id"`
	CommittedAt time.Time                     `json:"committed_at"`
	Entity      domain.EntityType             `json:"entity"`
	Changes     []domain.FieldChange          `json:"changes,omitempty"`
	Crossings   []domain.BorderCrossingChange `json:"border_crossing_changes,omitempty"`
}

// Subject returns the subject used for an entity type.
func (s *NATSSink) Subject(entity domain.EntityType) string {
	return s.prefix + "." + string(entity)
}

// Publish implements Sink.
func (s *NATSSink) Publish(ctx context.Context, batch Batch) error {
	var msgs []message
	for _, entity := range []domain.EntityType{domain.EntityAirport, domain.EntityRunway, domain.EntityProcedure, domain.EntityAIPEntry} {
		if changes := batch.ByEntity()[entity]; len(changes) > 0 {
			msgs = append(msgs, message{BatchID: batch.ID, CommittedAt: batch.CommittedAt, Entity: entity, Changes: changes})
		}
	}
	if len(batch.BorderCrossingChanges) > 0 {
		msgs = append(msgs, message{BatchID: batch.ID, CommittedAt: batch.CommittedAt, Entity: domain.EntityBorderCrossing, Crossings: batch.BorderCrossingChanges})
	}
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode %s changes: %w", msg.Entity, err)
		}
		if err := s.pub.Publish(s.Subject(msg.Entity), data); err != nil {
			return fmt.Errorf("publish %s changes: %w", msg.Entity, err)
		}
	}
	if f, ok := s.pub.(flusher); ok && len(msgs) > 0 {
		if err := f.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("flush nats: %w", err)
		}
	}
	return nil
}
