package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ExceptionKind string

const (
	// ExceptionKindBlocked suppresses every generated slot on the date.
	ExceptionKindBlocked ExceptionKind = "blocked"
	// ExceptionKindOverride replaces the generated slots on the date with Slots.
	ExceptionKindOverride ExceptionKind = "override"
)

// AvailabilityException overrides the recurring pattern for one calendar date.
type AvailabilityException struct {
	ID         uuid.UUID     `json:"id"`
	ProviderID string        `json:"provider_id"`
	Date       Date          `json:"date"`
	Kind       ExceptionKind `json:"kind"`
	Slots      []TimeSlot    `json:"slots,omitempty"`
}

func NewBlockedDay(providerID string, date Date) (AvailabilityException, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AvailabilityException{}, err
	}
	e := AvailabilityException{
		ID:         id,
		ProviderID: providerID,
		Date:       date,
		Kind:       ExceptionKindBlocked,
	}
	if err := e.Validate(); err != nil {
		return AvailabilityException{}, err
	}
	return e, nil
}

func NewOverriddenDay(providerID string, date Date, slots []TimeSlot) (AvailabilityException, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AvailabilityException{}, err
	}
	e := AvailabilityException{
		ID:         id,
		ProviderID: providerID,
		Date:       date,
		Kind:       ExceptionKindOverride,
		Slots:      cloneSlots(slots),
	}
	if err := e.Validate(); err != nil {
		return AvailabilityException{}, err
	}
	return e, nil
}

func (e AvailabilityException) Validate() error {
	if strings.TrimSpace(e.ProviderID) == "" {
		return fmt.Errorf("exception %s: %w", e.ID, ErrMissingProvider)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("exception %s: %w: date is required", e.ID, ErrInvalidException)
	}
	switch e.Kind {
	case ExceptionKindBlocked:
		if len(e.Slots) > 0 {
			return fmt.Errorf("exception %s: %w: blocked day cannot carry slots", e.ID, ErrInvalidException)
		}
	case ExceptionKindOverride:
		if len(e.Slots) == 0 {
			return fmt.Errorf("exception %s: %w: override requires at least one slot", e.ID, ErrInvalidException)
		}
		for _, s := range e.Slots {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("exception %s: %w", e.ID, err)
			}
			if s.ProviderID != e.ProviderID {
				return fmt.Errorf("exception %s: slot %s: %w", e.ID, s.ID, ErrProviderMismatch)
			}
		}
	default:
		return fmt.Errorf("exception %s: %w: unknown kind %q", e.ID, ErrInvalidException, e.Kind)
	}
	return nil
}

func (e AvailabilityException) clone() AvailabilityException {
	e.Slots = cloneSlots(e.Slots)
	return e
}
