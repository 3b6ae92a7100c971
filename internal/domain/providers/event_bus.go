package providers

import (
	"context"

	"github.com/adetayo/edflowsim/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// simulation events. Delivery is best-effort fan-out: a failure to reach
// one observer must never block delivery to the rest, and publish errors
// are never surfaced to the simulation engine as hard failures.
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.SimEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.SimEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelSimUpdates is the channel carrying every simulation event
	EventChannelSimUpdates = "sim:updates"

	// EventChannelPatientPrefix is the prefix for patient-specific channels
	EventChannelPatientPrefix = "patient:"
)

// GetPatientChannel returns the channel name for a specific patient
func GetPatientChannel(patientID string) string {
	return EventChannelPatientPrefix + patientID
}
