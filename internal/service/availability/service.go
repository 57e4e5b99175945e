package availability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"availability/backend/internal/domain"
	"availability/backend/internal/events"
	"availability/backend/internal/store"
)

const DefaultMaxRangeDays = 92

type ValidationError struct {
	msg string
	err error
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// invalid reports a domain rule violation as bad input.
func invalid(err error) error {
	return &ValidationError{msg: err.Error(), err: err}
}

type Service struct {
	repo         store.AvailabilityRepository
	publisher    events.Publisher
	log          *slog.Logger
	now          func() time.Time
	maxRangeDays int
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMaxRangeDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxRangeDays = days
		}
	}
}

func NewService(repo store.AvailabilityRepository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		publisher:    events.Noop{},
		log:          slog.Default(),
		now:          time.Now,
		maxRangeDays: DefaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "availability_service"))
	return s
}

func (s *Service) RegisterProvider(ctx context.Context, providerID, timeZone string) (domain.Snapshot, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return domain.Snapshot{}, validationError("provider_id is required")
	}
	agg, err := domain.NewProviderAvailability(providerID, timeZone, domain.WithClock(s.now))
	if err != nil {
		return domain.Snapshot{}, invalid(err)
	}
	snap := agg.Snapshot()

	err = s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.AvailabilityTx) error {
		return tx.Create(ctx, snap)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.publish(ctx, events.TypeProviderRegistered, snap.ProviderID, snap.Version, "")
	return snap, nil
}

func (s *Service) GetAvailability(ctx context.Context, providerID string) (domain.Snapshot, error) {
	if strings.TrimSpace(providerID) == "" {
		return domain.Snapshot{}, validationError("provider_id is required")
	}
	return s.repo.Get(ctx, providerID)
}

type AddTimeSlotInput struct {
	ProviderID  string
	ServiceType string
	StartTime   time.Time
	EndTime     time.Time
}

func (s *Service) AddTimeSlot(ctx context.Context, in AddTimeSlotInput) (domain.TimeSlot, error) {
	if strings.TrimSpace(in.ProviderID) == "" {
		return domain.TimeSlot{}, validationError("provider_id is required")
	}
	st, err := domain.ParseServiceType(in.ServiceType)
	if err != nil {
		return domain.TimeSlot{}, invalid(err)
	}
	slot, err := domain.NewTimeSlot(in.ProviderID, st, in.StartTime.UTC(), in.EndTime.UTC())
	if err != nil {
		return domain.TimeSlot{}, invalid(err)
	}

	agg, err := s.mutate(ctx, in.ProviderID, func(agg *domain.ProviderAvailability) error {
		ok, err := agg.AddTimeSlot(slot)
		if err != nil {
			return invalid(err)
		}
		if !ok {
			return store.ErrConflict
		}
		return nil
	})
	if err != nil {
		return domain.TimeSlot{}, err
	}
	s.publish(ctx, events.TypeSlotAdded, in.ProviderID, agg.Version(), slot.ID.String())
	return slot, nil
}

func (s *Service) RemoveTimeSlot(ctx context.Context, providerID string, slotID uuid.UUID) error {
	if err := requireIDs(providerID, slotID, "slot_id"); err != nil {
		return err
	}
	agg, err := s.mutate(ctx, providerID, func(agg *domain.ProviderAvailability) error {
		if !agg.RemoveTimeSlot(slotID) {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.TypeSlotRemoved, providerID, agg.Version(), slotID.String())
	return nil
}

type AddRecurringScheduleInput struct {
	ProviderID   string
	DayOfWeek    int16
	StartTime    string
	EndTime      string
	ServiceTypes []string
}

func (s *Service) AddRecurringSchedule(ctx context.Context, in AddRecurringScheduleInput) (domain.RecurringSchedule, error) {
	if strings.TrimSpace(in.ProviderID) == "" {
		return domain.RecurringSchedule{}, validationError("provider_id is required")
	}
	day := domain.DayOfWeek(in.DayOfWeek)
	if !day.Valid() {
		return domain.RecurringSchedule{}, validationError("day_of_week must be between 1 (Monday) and 7 (Sunday)")
	}
	start, err := domain.ParseTimeOfDay(strings.TrimSpace(in.StartTime))
	if err != nil {
		return domain.RecurringSchedule{}, invalid(err)
	}
	end, err := domain.ParseTimeOfDay(strings.TrimSpace(in.EndTime))
	if err != nil {
		return domain.RecurringSchedule{}, invalid(err)
	}
	types, err := parseServiceTypes(in.ServiceTypes)
	if err != nil {
		return domain.RecurringSchedule{}, err
	}
	sched, err := domain.NewRecurringSchedule(in.ProviderID, day, start, end, types)
	if err != nil {
		return domain.RecurringSchedule{}, invalid(err)
	}

	agg, err := s.mutate(ctx, in.ProviderID, func(agg *domain.ProviderAvailability) error {
		if err := agg.AddRecurringSchedule(sched); err != nil {
			return invalid(err)
		}
		return nil
	})
	if err != nil {
		return domain.RecurringSchedule{}, err
	}
	s.publish(ctx, events.TypeScheduleAdded, in.ProviderID, agg.Version(), sched.ID.String())
	return sched, nil
}

func (s *Service) RemoveRecurringSchedule(ctx context.Context, providerID string, scheduleID uuid.UUID) error {
	if err := requireIDs(providerID, scheduleID, "schedule_id"); err != nil {
		return err
	}
	agg, err := s.mutate(ctx, providerID, func(agg *domain.ProviderAvailability) error {
		if !agg.RemoveRecurringSchedule(scheduleID) {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.TypeScheduleRemoved, providerID, agg.Version(), scheduleID.String())
	return nil
}

type OverrideSlotInput struct {
	ServiceType string
	StartTime   time.Time
	EndTime     time.Time
}

type AddExceptionInput struct {
	ProviderID string
	Date       string
	Kind       string
	Slots      []OverrideSlotInput
}

func (s *Service) AddException(ctx context.Context, in AddExceptionInput) (domain.AvailabilityException, error) {
	if strings.TrimSpace(in.ProviderID) == "" {
		return domain.AvailabilityException{}, validationError("provider_id is required")
	}
	date, err := domain.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return domain.AvailabilityException{}, invalid(err)
	}

	var exc domain.AvailabilityException
	switch domain.ExceptionKind(strings.ToLower(strings.TrimSpace(in.Kind))) {
	case domain.ExceptionKindBlocked:
		if len(in.Slots) > 0 {
			return domain.AvailabilityException{}, validationError("blocked exception cannot carry slots")
		}
		exc, err = domain.NewBlockedDay(in.ProviderID, date)
	case domain.ExceptionKindOverride:
		slots := make([]domain.TimeSlot, 0, len(in.Slots))
		for _, si := range in.Slots {
			st, err := domain.ParseServiceType(si.ServiceType)
			if err != nil {
				return domain.AvailabilityException{}, invalid(err)
			}
			slot, err := domain.NewTimeSlot(in.ProviderID, st, si.StartTime.UTC(), si.EndTime.UTC())
			if err != nil {
				return domain.AvailabilityException{}, invalid(err)
			}
			slots = append(slots, slot)
		}
		exc, err = domain.NewOverriddenDay(in.ProviderID, date, slots)
	default:
		return domain.AvailabilityException{}, validationError("kind must be blocked or override")
	}
	if err != nil {
		return domain.AvailabilityException{}, invalid(err)
	}

	agg, err := s.mutate(ctx, in.ProviderID, func(agg *domain.ProviderAvailability) error {
		if err := agg.AddException(exc); err != nil {
			return invalid(err)
		}
		return nil
	})
	if err != nil {
		return domain.AvailabilityException{}, err
	}
	s.publish(ctx, events.TypeExceptionAdded, in.ProviderID, agg.Version(), exc.ID.String())
	return exc, nil
}

func (s *Service) RemoveException(ctx context.Context, providerID string, exceptionID uuid.UUID) error {
	if err := requireIDs(providerID, exceptionID, "exception_id"); err != nil {
		return err
	}
	agg, err := s.mutate(ctx, providerID, func(agg *domain.ProviderAvailability) error {
		if !agg.RemoveException(exceptionID) {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.TypeExceptionRemoved, providerID, agg.Version(), exceptionID.String())
	return nil
}

func (s *Service) BookSlot(ctx context.Context, providerID string, slotID uuid.UUID, bookingRef string) (domain.TimeSlot, error) {
	if err := requireIDs(providerID, slotID, "slot_id"); err != nil {
		return domain.TimeSlot{}, err
	}
	ref := strings.TrimSpace(bookingRef)
	if ref == "" {
		return domain.TimeSlot{}, validationError("booking_ref is required")
	}

	var slot domain.TimeSlot
	agg, err := s.mutate(ctx, providerID, func(agg *domain.ProviderAvailability) error {
		if _, ok := agg.TimeSlot(slotID); !ok {
			return store.ErrNotFound
		}
		if !agg.BookSlot(slotID, ref) {
			return store.ErrConflict
		}
		slot, _ = agg.TimeSlot(slotID)
		return nil
	})
	if err != nil {
		return domain.TimeSlot{}, err
	}
	s.publish(ctx, events.TypeSlotBooked, providerID, agg.Version(), slotID.String())
	return slot, nil
}

func (s *Service) UnbookSlot(ctx context.Context, providerID string, slotID uuid.UUID) (domain.TimeSlot, error) {
	if err := requireIDs(providerID, slotID, "slot_id"); err != nil {
		return domain.TimeSlot{}, err
	}

	var slot domain.TimeSlot
	agg, err := s.mutate(ctx, providerID, func(agg *domain.ProviderAvailability) error {
		if _, ok := agg.TimeSlot(slotID); !ok {
			return store.ErrNotFound
		}
		if !agg.UnbookSlot(slotID) {
			return store.ErrConflict
		}
		slot, _ = agg.TimeSlot(slotID)
		return nil
	})
	if err != nil {
		return domain.TimeSlot{}, err
	}
	s.publish(ctx, events.TypeSlotUnbooked, providerID, agg.Version(), slotID.String())
	return slot, nil
}

type ReserveInput struct {
	ProviderID  string
	ServiceType string
	StartTime   time.Time
	EndTime     time.Time
	BookingRef  string
}

// Reserve books [StartTime, EndTime) if it is available. A held slot with the
// exact window is booked in place; otherwise a new slot is materialized.
// Retrying with the same booking ref returns the existing reservation.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (domain.TimeSlot, error) {
	if strings.TrimSpace(in.ProviderID) == "" {
		return domain.TimeSlot{}, validationError("provider_id is required")
	}
	ref := strings.TrimSpace(in.BookingRef)
	if ref == "" {
		return domain.TimeSlot{}, validationError("booking_ref is required")
	}
	if len(ref) > 256 {
		return domain.TimeSlot{}, validationError("booking_ref too long")
	}
	st, err := domain.ParseServiceType(in.ServiceType)
	if err != nil {
		return domain.TimeSlot{}, invalid(err)
	}
	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !start.Before(end) {
		return domain.TimeSlot{}, validationError("end_time must be after start_time")
	}

	var (
		slot     domain.TimeSlot
		replayed bool
	)
	agg, err := s.mutate(ctx, in.ProviderID, func(agg *domain.ProviderAvailability) error {
		for _, existing := range agg.TimeSlots() {
			if !existing.Booked || existing.BookingRef == nil || *existing.BookingRef != ref {
				continue
			}
			if existing.ServiceType != st || !existing.Start.Equal(start) || !existing.End.Equal(end) {
				return store.ErrIdempotencyConflict
			}
			slot = existing
			replayed = true
			return nil
		}

		if !agg.IsAvailable(start, end, st) {
			return store.ErrConflict
		}

		for _, held := range agg.TimeSlots() {
			if held.Booked || held.ServiceType != st || !held.Start.Equal(start) || !held.End.Equal(end) {
				continue
			}
			agg.BookSlot(held.ID, ref)
			slot, _ = agg.TimeSlot(held.ID)
			return nil
		}

		candidate := domain.TimeSlot{
			ID:          reservationID(in.ProviderID, ref, st, start, end),
			ProviderID:  in.ProviderID,
			ServiceType: st,
			Start:       start,
			End:         end,
		}
		ok, err := agg.AddTimeSlot(candidate)
		if err != nil {
			return invalid(err)
		}
		if !ok {
			return store.ErrConflict
		}
		agg.BookSlot(candidate.ID, ref)
		slot, _ = agg.TimeSlot(candidate.ID)
		return nil
	})
	if err != nil {
		return domain.TimeSlot{}, err
	}
	if !replayed {
		s.publish(ctx, events.TypeSlotBooked, in.ProviderID, agg.Version(), slot.ID.String())
	}
	return slot, nil
}

// reservationID keys on the window as well as the ref so a ref whose earlier
// slot was unbooked can reserve a different window.
func reservationID(providerID, bookingRef string, st domain.ServiceType, start, end time.Time) uuid.UUID {
	name := strings.Join([]string{
		"availability:reserve",
		providerID,
		bookingRef,
		string(st),
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
	}, ":")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

type ListAvailableSlotsInput struct {
	ProviderID  string
	From        string
	To          string
	ServiceType string
}

func (s *Service) ListAvailableSlots(ctx context.Context, in ListAvailableSlotsInput) ([]domain.TimeSlot, error) {
	if strings.TrimSpace(in.ProviderID) == "" {
		return nil, validationError("provider_id is required")
	}
	from, err := domain.ParseDate(strings.TrimSpace(in.From))
	if err != nil {
		return nil, invalid(err)
	}
	to, err := domain.ParseDate(strings.TrimSpace(in.To))
	if err != nil {
		return nil, invalid(err)
	}
	rng, err := domain.NewDateRange(from, to)
	if err != nil {
		return nil, validationError("to must not be before from")
	}
	if rng.Days() > s.maxRangeDays {
		return nil, validationError("date range too long")
	}

	var filter *domain.ServiceType
	if st := strings.TrimSpace(in.ServiceType); st != "" {
		parsed, err := domain.ParseServiceType(st)
		if err != nil {
			return nil, invalid(err)
		}
		filter = &parsed
	}

	agg, err := s.load(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	return agg.AvailableTimeSlots(rng, filter), nil
}

func (s *Service) CheckAvailability(ctx context.Context, providerID, serviceType string, start, end time.Time) (bool, error) {
	if strings.TrimSpace(providerID) == "" {
		return false, validationError("provider_id is required")
	}
	st, err := domain.ParseServiceType(serviceType)
	if err != nil {
		return false, invalid(err)
	}
	agg, err := s.load(ctx, providerID)
	if err != nil {
		return false, err
	}
	return agg.IsAvailable(start, end, st), nil
}

func (s *Service) load(ctx context.Context, providerID string) (*domain.ProviderAvailability, error) {
	snap, err := s.repo.Get(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return domain.FromSnapshot(snap, domain.WithClock(s.now))
}

// mutate runs fn against the provider's aggregate inside the provider's
// transaction and saves the result when fn changed it.
func (s *Service) mutate(ctx context.Context, providerID string, fn func(agg *domain.ProviderAvailability) error) (*domain.ProviderAvailability, error) {
	var out *domain.ProviderAvailability
	err := s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.AvailabilityTx) error {
		snap, err := tx.Load(ctx, providerID)
		if err != nil {
			return err
		}
		agg, err := domain.FromSnapshot(snap, domain.WithClock(s.now))
		if err != nil {
			return err
		}
		before := agg.Version()
		if err := fn(agg); err != nil {
			return err
		}
		if agg.Version() != before {
			if err := tx.Save(ctx, agg.Snapshot(), before); err != nil {
				return err
			}
		}
		out = agg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, eventType, providerID string, version int64, entityID string) {
	evt, err := events.New(eventType, providerID, version, entityID, s.now())
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.log.Warn("publish event failed",
			slog.String("event_type", eventType),
			slog.String("provider_id", providerID),
			slog.Any("err", err),
		)
	}
}

func requireIDs(providerID string, id uuid.UUID, field string) error {
	if strings.TrimSpace(providerID) == "" {
		return validationError("provider_id is required")
	}
	if id == uuid.Nil {
		return validationError(field + " is required")
	}
	return nil
}

func parseServiceTypes(raw []string) ([]domain.ServiceType, error) {
	if len(raw) == 0 {
		return nil, invalid(domain.ErrEmptyServiceTypes)
	}
	out := make([]domain.ServiceType, 0, len(raw))
	for _, r := range raw {
		st, err := domain.ParseServiceType(strings.TrimSpace(r))
		if err != nil {
			return nil, invalid(err)
		}
		out = append(out, st)
	}
	return out, nil
}

// IsValidation reports whether err is bad input rather than a store failure.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
