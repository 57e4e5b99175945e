package domain

import "errors"

var (
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidServiceType = errors.New("invalid service type")
	ErrInvalidTimeRange   = errors.New("start must be before end")
	ErrEmptyServiceTypes  = errors.New("at least one service type is required")
	ErrInvalidDayOfWeek   = errors.New("invalid day of week")
	ErrInvalidBooking     = errors.New("booking reference must be set if and only if booked")
	ErrProviderMismatch   = errors.New("provider mismatch")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrInvalidException   = errors.New("invalid availability exception")
	ErrInvalidTimeZone    = errors.New("invalid time_zone")
	ErrMissingProvider    = errors.New("provider_id is required")
)
