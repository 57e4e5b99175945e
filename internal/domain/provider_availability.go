package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderAvailability is the per-provider aggregate of directly-held slots,
// recurring schedules and date exceptions. It is not safe for concurrent
// mutation; callers serialize access per provider.
type ProviderAvailability struct {
	providerID string
	loc        *time.Location

	slots      []TimeSlot
	slotIndex  map[uuid.UUID]int
	schedules  []RecurringSchedule
	schedIndex map[uuid.UUID]int
	exceptions []AvailabilityException
	excIndex   map[uuid.UUID]int

	version   int64
	updatedAt time.Time
	now       func() time.Time
}

type Option func(*ProviderAvailability)

// WithClock replaces time.Now as the source of UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(p *ProviderAvailability) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProviderAvailability(providerID, timeZone string, opts ...Option) (*ProviderAvailability, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, ErrMissingProvider
	}
	loc, err := LoadLocation(timeZone)
	if err != nil {
		return nil, err
	}
	p := &ProviderAvailability{
		providerID: providerID,
		loc:        loc,
		slotIndex:  map[uuid.UUID]int{},
		schedIndex: map[uuid.UUID]int{},
		excIndex:   map[uuid.UUID]int{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.updatedAt = p.now().UTC()
	return p, nil
}

// LoadLocation resolves an IANA zone name; empty means UTC.
func LoadLocation(timeZone string) (*time.Location, error) {
	tz := strings.TrimSpace(timeZone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, timeZone)
	}
	return loc, nil
}

func (p *ProviderAvailability) ProviderID() string       { return p.providerID }
func (p *ProviderAvailability) Location() *time.Location { return p.loc }
func (p *ProviderAvailability) Version() int64           { return p.version }
func (p *ProviderAvailability) UpdatedAt() time.Time     { return p.updatedAt }

func (p *ProviderAvailability) TimeSlots() []TimeSlot { return cloneSlots(p.slots) }

func (p *ProviderAvailability) RecurringSchedules() []RecurringSchedule {
	out := make([]RecurringSchedule, len(p.schedules))
	for i, s := range p.schedules {
		out[i] = s.clone()
	}
	return out
}

func (p *ProviderAvailability) Exceptions() []AvailabilityException {
	out := make([]AvailabilityException, len(p.exceptions))
	for i, e := range p.exceptions {
		out[i] = e.clone()
	}
	return out
}

func (p *ProviderAvailability) TimeSlot(id uuid.UUID) (TimeSlot, bool) {
	i, ok := p.slotIndex[id]
	if !ok {
		return TimeSlot{}, false
	}
	return p.slots[i].clone(), true
}

func (p *ProviderAvailability) touch() {
	p.version++
	p.updatedAt = p.now().UTC()
}

// AddTimeSlot appends a directly-held slot. It returns false when the slot
// overlaps an existing directly-held slot or reuses an id, and an error when
// the slot itself is invalid or belongs to another provider.
func (p *ProviderAvailability) AddTimeSlot(slot TimeSlot) (bool, error) {
	if err := slot.Validate(); err != nil {
		return false, err
	}
	if slot.ProviderID != p.providerID {
		return false, fmt.Errorf("slot %s: %w", slot.ID, ErrProviderMismatch)
	}
	if _, exists := p.slotIndex[slot.ID]; exists {
		return false, nil
	}
	if IsConflict(slot, p.slots) {
		return false, nil
	}
	p.slots = append(p.slots, slot.clone())
	p.slotIndex[slot.ID] = len(p.slots) - 1
	p.touch()
	return true, nil
}

func (p *ProviderAvailability) RemoveTimeSlot(id uuid.UUID) bool {
	i, ok := p.slotIndex[id]
	if !ok {
		return false
	}
	p.slots = append(p.slots[:i], p.slots[i+1:]...)
	p.slotIndex = reindex(p.slots, func(s TimeSlot) uuid.UUID { return s.ID })
	p.touch()
	return true
}

func (p *ProviderAvailability) AddRecurringSchedule(s RecurringSchedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ProviderID != p.providerID {
		return fmt.Errorf("schedule %s: %w", s.ID, ErrProviderMismatch)
	}
	if _, exists := p.schedIndex[s.ID]; exists {
		return fmt.Errorf("schedule %s: %w", s.ID, ErrDuplicateID)
	}
	p.schedules = append(p.schedules, s.clone())
	p.schedIndex[s.ID] = len(p.schedules) - 1
	p.touch()
	return nil
}

func (p *ProviderAvailability) RemoveRecurringSchedule(id uuid.UUID) bool {
	i, ok := p.schedIndex[id]
	if !ok {
		return false
	}
	p.schedules = append(p.schedules[:i], p.schedules[i+1:]...)
	p.schedIndex = reindex(p.schedules, func(s RecurringSchedule) uuid.UUID { return s.ID })
	p.touch()
	return true
}

func (p *ProviderAvailability) AddException(e AvailabilityException) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ProviderID != p.providerID {
		return fmt.Errorf("exception %s: %w", e.ID, ErrProviderMismatch)
	}
	if err := p.checkOverrideDates(e); err != nil {
		return err
	}
	if _, exists := p.excIndex[e.ID]; exists {
		return fmt.Errorf("exception %s: %w", e.ID, ErrDuplicateID)
	}
	p.exceptions = append(p.exceptions, e.clone())
	p.excIndex[e.ID] = len(p.exceptions) - 1
	p.touch()
	return nil
}

func (p *ProviderAvailability) RemoveException(id uuid.UUID) bool {
	i, ok := p.excIndex[id]
	if !ok {
		return false
	}
	p.exceptions = append(p.exceptions[:i], p.exceptions[i+1:]...)
	p.excIndex = reindex(p.exceptions, func(e AvailabilityException) uuid.UUID { return e.ID })
	p.touch()
	return true
}

// BookSlot marks a directly-held slot as booked. An existing booking is never
// overwritten.
func (p *ProviderAvailability) BookSlot(id uuid.UUID, bookingRef string) bool {
	i, ok := p.slotIndex[id]
	if !ok || p.slots[i].Booked || strings.TrimSpace(bookingRef) == "" {
		return false
	}
	ref := bookingRef
	p.slots[i].Booked = true
	p.slots[i].BookingRef = &ref
	p.touch()
	return true
}

func (p *ProviderAvailability) UnbookSlot(id uuid.UUID) bool {
	i, ok := p.slotIndex[id]
	if !ok || !p.slots[i].Booked {
		return false
	}
	p.slots[i].Booked = false
	p.slots[i].BookingRef = nil
	p.touch()
	return true
}

// AvailableTimeSlots is the single read path: generated slots with exceptions
// applied, minus anything overlapping a booked slot, plus unbooked
// directly-held slots, sorted by start.
func (p *ProviderAvailability) AvailableTimeSlots(rng DateRange, serviceType *ServiceType) []TimeSlot {
	generated := GenerateTimeSlots(p.schedules, rng, p.providerID, p.loc)

	inRange := make([]AvailabilityException, 0, len(p.exceptions))
	for _, e := range p.exceptions {
		if rng.Contains(e.Date) {
			inRange = append(inRange, e)
		}
	}
	derived := ApplyExceptions(generated, inRange, p.loc)

	booked := p.bookedSlots()
	out := make([]TimeSlot, 0, len(derived)+len(p.slots))
	for _, s := range derived {
		if s.Booked || IsConflict(s, booked) {
			continue
		}
		out = append(out, s)
	}
	for _, s := range p.slots {
		if s.Booked || !rng.Contains(DateOf(s.Start, p.loc)) {
			continue
		}
		out = append(out, s.clone())
	}

	if serviceType != nil {
		filtered := out[:0]
		for _, s := range out {
			if s.ServiceType == *serviceType {
				filtered = append(filtered, s)
			}
		}
		out = filtered
	}

	sortSlots(out)
	return out
}

// IsAvailable answers whether [start, end) can be booked for serviceType.
func (p *ProviderAvailability) IsAvailable(start, end time.Time, serviceType ServiceType) bool {
	if !start.Before(end) || !serviceType.Valid() {
		return false
	}
	if conflictsWith(start, end, p.bookedSlots()) {
		return false
	}
	for _, s := range p.slots {
		if !s.Booked && s.ServiceType == serviceType && s.Contains(start, end) {
			return true
		}
	}

	date := DateOf(start, p.loc)
	if e, ok := effectiveExceptions(p.exceptions)[date]; ok {
		if e.Kind != ExceptionKindOverride {
			return false
		}
		for _, s := range e.Slots {
			if !s.Booked && s.ServiceType == serviceType && s.Contains(start, end) {
				return true
			}
		}
		return false
	}

	dow := DayOfWeekOf(date)
	for _, sched := range p.schedules {
		if sched.DayOfWeek != dow || !sched.Offers(serviceType) {
			continue
		}
		windowStart := date.At(sched.StartTime, p.loc)
		windowEnd := date.At(sched.EndTime, p.loc)
		if !start.Before(windowStart) && !end.After(windowEnd) {
			return true
		}
	}
	return false
}

// Validate checks every contained entity against its own invariants and the
// aggregate's provider. It does not mutate.
func (p *ProviderAvailability) Validate() error {
	var errs []error
	for _, s := range p.slots {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if s.ProviderID != p.providerID {
			errs = append(errs, fmt.Errorf("slot %s: %w", s.ID, ErrProviderMismatch))
		}
	}
	for _, s := range p.schedules {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if s.ProviderID != p.providerID {
			errs = append(errs, fmt.Errorf("schedule %s: %w", s.ID, ErrProviderMismatch))
		}
	}
	for _, e := range p.exceptions {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
		}
		if e.ProviderID != p.providerID {
			errs = append(errs, fmt.Errorf("exception %s: %w", e.ID, ErrProviderMismatch))
		}
		if err := p.checkOverrideDates(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// checkOverrideDates requires every override slot to start on the exception
// date in the provider's zone.
func (p *ProviderAvailability) checkOverrideDates(e AvailabilityException) error {
	for _, s := range e.Slots {
		if DateOf(s.Start, p.loc) != e.Date {
			return fmt.Errorf("exception %s: slot %s: %w: starts on %s, want %s",
				e.ID, s.ID, ErrInvalidException, DateOf(s.Start, p.loc), e.Date)
		}
	}
	return nil
}

func (p *ProviderAvailability) bookedSlots() []TimeSlot {
	var out []TimeSlot
	for _, s := range p.slots {
		if s.Booked {
			out = append(out, s)
		}
	}
	return out
}

func sortSlots(slots []TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		if a.ServiceType != b.ServiceType {
			return a.ServiceType < b.ServiceType
		}
		return a.ID.String() < b.ID.String()
	})
}

func reindex[T any](items []T, key func(T) uuid.UUID) map[uuid.UUID]int {
	idx := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		idx[key(item)] = i
	}
	return idx
}
