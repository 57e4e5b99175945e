package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecurringSchedule is a standing weekly availability window.
type RecurringSchedule struct {
	ID           uuid.UUID     `json:"id"`
	ProviderID   string        `json:"provider_id"`
	DayOfWeek    DayOfWeek     `json:"day_of_week"`
	StartTime    TimeOfDay     `json:"start_time"`
	EndTime      TimeOfDay     `json:"end_time"`
	ServiceTypes []ServiceType `json:"service_types"`
}

func NewRecurringSchedule(providerID string, day DayOfWeek, start, end TimeOfDay, serviceTypes []ServiceType) (RecurringSchedule, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return RecurringSchedule{}, err
	}

	normalized := make([]ServiceType, 0, len(serviceTypes))
	seen := make(map[ServiceType]struct{}, len(serviceTypes))
	for _, st := range serviceTypes {
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}
		normalized = append(normalized, st)
	}

	s := RecurringSchedule{
		ID:           id,
		ProviderID:   providerID,
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
		ServiceTypes: normalized,
	}
	if err := s.Validate(); err != nil {
		return RecurringSchedule{}, err
	}
	return s, nil
}

func (s RecurringSchedule) Validate() error {
	if strings.TrimSpace(s.ProviderID) == "" {
		return fmt.Errorf("schedule %s: %w", s.ID, ErrMissingProvider)
	}
	if !s.DayOfWeek.Valid() {
		return fmt.Errorf("schedule %s: %w: %d", s.ID, ErrInvalidDayOfWeek, int16(s.DayOfWeek))
	}
	if !s.StartTime.Valid() || !s.EndTime.Valid() {
		return fmt.Errorf("schedule %s: %w: time of day", s.ID, ErrInvalidFormat)
	}
	if !s.StartTime.Before(s.EndTime) {
		return fmt.Errorf("schedule %s: %w", s.ID, ErrInvalidTimeRange)
	}
	if len(s.ServiceTypes) == 0 {
		return fmt.Errorf("schedule %s: %w", s.ID, ErrEmptyServiceTypes)
	}
	for _, st := range s.ServiceTypes {
		if !st.Valid() {
			return fmt.Errorf("schedule %s: %w: %q", s.ID, ErrInvalidServiceType, st)
		}
	}
	return nil
}

func (s RecurringSchedule) Offers(st ServiceType) bool {
	for _, v := range s.ServiceTypes {
		if v == st {
			return true
		}
	}
	return false
}

func (s RecurringSchedule) clone() RecurringSchedule {
	s.ServiceTypes = append([]ServiceType(nil), s.ServiceTypes...)
	return s
}
