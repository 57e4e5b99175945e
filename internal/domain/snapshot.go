package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the plain serializable form of a ProviderAvailability.
type Snapshot struct {
	ProviderID string                  `json:"provider_id"`
	TimeZone   string                  `json:"time_zone"`
	Version    int64                   `json:"version"`
	UpdatedAt  time.Time               `json:"updated_at"`
	Slots      []TimeSlot              `json:"slots"`
	Schedules  []RecurringSchedule     `json:"schedules"`
	Exceptions []AvailabilityException `json:"exceptions"`
}

func (p *ProviderAvailability) Snapshot() Snapshot {
	return Snapshot{
		ProviderID: p.providerID,
		TimeZone:   p.loc.String(),
		Version:    p.version,
		UpdatedAt:  p.updatedAt,
		Slots:      nonNil(p.TimeSlots()),
		Schedules:  p.RecurringSchedules(),
		Exceptions: p.Exceptions(),
	}
}

// FromSnapshot rebuilds an aggregate without validating its contents. Only
// the provider id and time zone are checked; call Validate after bulk loads.
func FromSnapshot(s Snapshot, opts ...Option) (*ProviderAvailability, error) {
	p, err := NewProviderAvailability(s.ProviderID, s.TimeZone, opts...)
	if err != nil {
		return nil, err
	}
	p.slots = cloneSlots(s.Slots)
	p.slotIndex = reindex(p.slots, func(t TimeSlot) uuid.UUID { return t.ID })

	p.schedules = make([]RecurringSchedule, len(s.Schedules))
	for i, sched := range s.Schedules {
		p.schedules[i] = sched.clone()
	}
	p.schedIndex = reindex(p.schedules, func(r RecurringSchedule) uuid.UUID { return r.ID })

	p.exceptions = make([]AvailabilityException, len(s.Exceptions))
	for i, e := range s.Exceptions {
		p.exceptions[i] = e.clone()
	}
	p.excIndex = reindex(p.exceptions, func(e AvailabilityException) uuid.UUID { return e.ID })

	p.version = s.Version
	if !s.UpdatedAt.IsZero() {
		p.updatedAt = s.UpdatedAt.UTC()
	}
	return p, nil
}

func nonNil(slots []TimeSlot) []TimeSlot {
	if slots == nil {
		return []TimeSlot{}
	}
	return slots
}
