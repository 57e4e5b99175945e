package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeProviderRegistered = "availability.provider_registered"
	TypeSlotAdded          = "availability.slot_added"
	TypeSlotRemoved        = "availability.slot_removed"
	TypeScheduleAdded      = "availability.schedule_added"
	TypeScheduleRemoved    = "availability.schedule_removed"
	TypeExceptionAdded     = "availability.exception_added"
	TypeExceptionRemoved   = "availability.exception_removed"
	TypeSlotBooked         = "availability.slot_booked"
	TypeSlotUnbooked       = "availability.slot_unbooked"
)

// Event tells downstream consumers that a provider's availability changed.
type Event struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"event_type"`
	ProviderID string    `json:"provider_id"`
	Version    int64     `json:"version"`
	EntityID   string    `json:"entity_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func New(eventType, providerID string, version int64, entityID string, now time.Time) (Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         id,
		Type:       eventType,
		ProviderID: providerID,
		Version:    version,
		EntityID:   entityID,
		OccurredAt: now.UTC(),
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
