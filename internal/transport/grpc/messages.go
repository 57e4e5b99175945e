package grpc

import (
	"time"

	"availability/backend/internal/domain"
)

type RegisterProviderRequest struct {
	ProviderID string `json:"provider_id"`
	TimeZone   string `json:"time_zone,omitempty"`
}

type GetAvailabilityRequest struct {
	ProviderID string `json:"provider_id"`
}

type AvailabilityResponse struct {
	Availability domain.Snapshot `json:"availability"`
}

type AddTimeSlotRequest struct {
	ProviderID  string     `json:"provider_id"`
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type SlotRequest struct {
	ProviderID string `json:"provider_id"`
	SlotID     string `json:"slot_id"`
	BookingRef string `json:"booking_ref,omitempty"`
}

type SlotResponse struct {
	Slot domain.TimeSlot `json:"slot"`
}

type AddRecurringScheduleRequest struct {
	ProviderID   string   `json:"provider_id"`
	DayOfWeek    int16    `json:"day_of_week"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	ServiceTypes []string `json:"service_types"`
}

type ScheduleRequest struct {
	ProviderID string `json:"provider_id"`
	ScheduleID string `json:"schedule_id"`
}

type ScheduleResponse struct {
	Schedule domain.RecurringSchedule `json:"schedule"`
}

type OverrideSlot struct {
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type AddExceptionRequest struct {
	ProviderID string         `json:"provider_id"`
	Date       string         `json:"date"`
	Kind       string         `json:"kind"`
	Slots      []OverrideSlot `json:"slots,omitempty"`
}

type ExceptionRequest struct {
	ProviderID  string `json:"provider_id"`
	ExceptionID string `json:"exception_id"`
}

type ExceptionResponse struct {
	Exception domain.AvailabilityException `json:"exception"`
}

// ReserveRequest falls back to the idempotency-key header when BookingRef is
// empty.
type ReserveRequest struct {
	ProviderID  string     `json:"provider_id"`
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	BookingRef  string     `json:"booking_ref,omitempty"`
}

type ListAvailableSlotsRequest struct {
	ProviderID  string `json:"provider_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	ServiceType string `json:"service_type,omitempty"`
}

type ListAvailableSlotsResponse struct {
	Slots []domain.TimeSlot `json:"slots"`
}

type CheckAvailabilityRequest struct {
	ProviderID  string     `json:"provider_id"`
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type CheckAvailabilityResponse struct {
	Available bool `json:"available"`
}

type Empty struct{}
