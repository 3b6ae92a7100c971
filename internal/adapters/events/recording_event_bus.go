package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
)

// RecordingEventBus decorates an EventBus with a durable journal of every
// published event. The journal is written after delivery and never gets in
// the way of it: a failed insert is logged and dropped, matching the
// fire-and-forget contract of the bus itself.
type RecordingEventBus struct {
	inner providers.EventBus
	db    *sqlx.DB
}

// NewRecordingEventBus wraps bus with an event journal backed by db
func NewRecordingEventBus(bus providers.EventBus, db *sqlx.DB) *RecordingEventBus {
	return &RecordingEventBus{inner: bus, db: db}
}

var _ providers.EventBus = (*RecordingEventBus)(nil)

// Publish delivers the event and then journals it
func (b *RecordingEventBus) Publish(ctx context.Context, channel string, event *entities.SimEvent) error {
	err := b.inner.Publish(ctx, channel, event)
	b.record(ctx, channel, event)
	return err
}

// Subscribe subscribes on the wrapped bus
func (b *RecordingEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SimEvent, error) {
	return b.inner.Subscribe(ctx, channel)
}

// Unsubscribe unsubscribes on the wrapped bus
func (b *RecordingEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return b.inner.Unsubscribe(ctx, channel)
}

// Close closes the wrapped bus. The journal database is owned by the caller.
func (b *RecordingEventBus) Close() error {
	return b.inner.Close()
}

func (b *RecordingEventBus) record(ctx context.Context, channel string, event *entities.SimEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal event %s for journal: %v", event.ID, err)
		return
	}

	query := `
		INSERT INTO sim_events (id, channel, event_type, patient_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := b.db.ExecContext(ctx, query,
		event.ID, channel, string(event.Type), nullIfEmpty(event.PatientID), payload, event.Timestamp,
	); err != nil {
		log.Printf("failed to journal event %s: %v", event.ID, err)
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
