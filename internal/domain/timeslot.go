package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is one bookable interval [Start, End) for a provider and service type.
type TimeSlot struct {
	ID          uuid.UUID   `json:"id"`
	ProviderID  string      `json:"provider_id"`
	ServiceType ServiceType `json:"service_type"`
	Start       time.Time   `json:"start_time"`
	End         time.Time   `json:"end_time"`
	Booked      bool        `json:"booked"`
	BookingRef  *string     `json:"booking_ref,omitempty"`
}

func NewTimeSlot(providerID string, serviceType ServiceType, start, end time.Time) (TimeSlot, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return TimeSlot{}, err
	}
	slot := TimeSlot{
		ID:          id,
		ProviderID:  providerID,
		ServiceType: serviceType,
		Start:       start,
		End:         end,
	}
	if err := slot.Validate(); err != nil {
		return TimeSlot{}, err
	}
	return slot, nil
}

func (s TimeSlot) Validate() error {
	if strings.TrimSpace(s.ProviderID) == "" {
		return fmt.Errorf("slot %s: %w", s.ID, ErrMissingProvider)
	}
	if !s.Start.Before(s.End) {
		return fmt.Errorf("slot %s: %w", s.ID, ErrInvalidTimeRange)
	}
	if !s.ServiceType.Valid() {
		return fmt.Errorf("slot %s: %w: %q", s.ID, ErrInvalidServiceType, s.ServiceType)
	}
	hasRef := s.BookingRef != nil && strings.TrimSpace(*s.BookingRef) != ""
	if s.Booked != hasRef || (s.BookingRef != nil && !hasRef) {
		return fmt.Errorf("slot %s: %w", s.ID, ErrInvalidBooking)
	}
	return nil
}

func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Contains reports whether [start, end) lies entirely within the slot.
func (s TimeSlot) Contains(start, end time.Time) bool {
	return !start.Before(s.Start) && !end.After(s.End)
}

// generatedSlotID is stable for identical generation inputs.
func generatedSlotID(providerID string, scheduleID uuid.UUID, st ServiceType, start time.Time) uuid.UUID {
	name := "availability:generated:" + providerID + ":" + scheduleID.String() + ":" + string(st) + ":" + strconv.FormatInt(start.UTC().UnixNano(), 10)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

func cloneSlots(in []TimeSlot) []TimeSlot {
	if in == nil {
		return nil
	}
	out := make([]TimeSlot, len(in))
	for i, s := range in {
		out[i] = s.clone()
	}
	return out
}

func (s TimeSlot) clone() TimeSlot {
	if s.BookingRef != nil {
		ref := *s.BookingRef
		s.BookingRef = &ref
	}
	return s
}
