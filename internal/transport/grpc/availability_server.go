package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"availability/backend/internal/domain"
	"availability/backend/internal/service/availability"
	"availability/backend/internal/store"
)

type AvailabilityServer struct {
	svc availabilityService
	log *slog.Logger
}

var _ AvailabilityServiceServer = (*AvailabilityServer)(nil)

type availabilityService interface {
	RegisterProvider(ctx context.Context, providerID, timeZone string) (domain.Snapshot, error)
	GetAvailability(ctx context.Context, providerID string) (domain.Snapshot, error)
	AddTimeSlot(ctx context.Context, in availability.AddTimeSlotInput) (domain.TimeSlot, error)
	RemoveTimeSlot(ctx context.Context, providerID string, slotID uuid.UUID) error
	AddRecurringSchedule(ctx context.Context, in availability.AddRecurringScheduleInput) (domain.RecurringSchedule, error)
	RemoveRecurringSchedule(ctx context.Context, providerID string, scheduleID uuid.UUID) error
	AddException(ctx context.Context, in availability.AddExceptionInput) (domain.AvailabilityException, error)
	RemoveException(ctx context.Context, providerID string, exceptionID uuid.UUID) error
	BookSlot(ctx context.Context, providerID string, slotID uuid.UUID, bookingRef string) (domain.TimeSlot, error)
	UnbookSlot(ctx context.Context, providerID string, slotID uuid.UUID) (domain.TimeSlot, error)
	Reserve(ctx context.Context, in availability.ReserveInput) (domain.TimeSlot, error)
	ListAvailableSlots(ctx context.Context, in availability.ListAvailableSlotsInput) ([]domain.TimeSlot, error)
	CheckAvailability(ctx context.Context, providerID, serviceType string, start, end time.Time) (bool, error)
}

func NewAvailabilityServer(svc availabilityService, log *slog.Logger) *AvailabilityServer {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.availability")),
	}
}

func (s *AvailabilityServer) RegisterProvider(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RegisterProvider"))

	var req RegisterProviderRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}

	snap, err := s.svc.RegisterProvider(ctx, req.ProviderID, req.TimeZone)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info("provider already registered", slog.String("provider_id", req.ProviderID))
			return nil, status.Error(codes.AlreadyExists, "provider already registered")
		}
		return nil, failure(log, "provider register", err, "provider not found", slog.String("provider_id", req.ProviderID))
	}

	log.Info("provider registered", slog.String("provider_id", snap.ProviderID), slog.String("time_zone", snap.TimeZone))
	return encode(log, AvailabilityResponse{Availability: snap})
}

func (s *AvailabilityServer) GetAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetAvailability"))

	var req GetAvailabilityRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}

	snap, err := s.svc.GetAvailability(ctx, req.ProviderID)
	if err != nil {
		return nil, failure(log, "availability get", err, "provider not found", slog.String("provider_id", req.ProviderID))
	}

	log.Debug("availability loaded", slog.String("provider_id", snap.ProviderID), slog.Int64("version", snap.Version))
	return encode(log, AvailabilityResponse{Availability: snap})
}

func (s *AvailabilityServer) AddTimeSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "AddTimeSlot"))

	var req AddTimeSlotRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}

	slot, err := s.svc.AddTimeSlot(ctx, availability.AddTimeSlotInput{
		ProviderID:  req.ProviderID,
		ServiceType: req.ServiceType,
		StartTime:   *req.StartTime,
		EndTime:     *req.EndTime,
	})
	if err != nil {
		return nil, failure(log, "slot add", err, "provider not found",
			slog.String("provider_id", req.ProviderID),
			slog.Time("start_time", *req.StartTime),
			slog.Time("end_time", *req.EndTime),
		)
	}

	log.Info(
		"slot added",
		slog.String("slot_id", slot.ID.String()),
		slog.String("provider_id", slot.ProviderID),
		slog.Time("start_time", slot.Start),
		slog.Time("end_time", slot.End),
	)
	return encode(log, SlotResponse{Slot: slot})
}

func (s *AvailabilityServer) RemoveTimeSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RemoveTimeSlot"))

	var req SlotRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "slot_id", req.SlotID, req.ProviderID)
	if err != nil {
		return nil, err
	}

	if err := s.svc.RemoveTimeSlot(ctx, req.ProviderID, id); err != nil {
		return nil, failure(log, "slot remove", err, "slot not found", slog.String("slot_id", id.String()), slog.String("provider_id", req.ProviderID))
	}

	log.Info("slot removed", slog.String("slot_id", id.String()), slog.String("provider_id", req.ProviderID))
	return encode(log, Empty{})
}

func (s *AvailabilityServer) AddRecurringSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "AddRecurringSchedule"))

	var req AddRecurringScheduleRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}

	sched, err := s.svc.AddRecurringSchedule(ctx, availability.AddRecurringScheduleInput{
		ProviderID:   req.ProviderID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		ServiceTypes: req.ServiceTypes,
	})
	if err != nil {
		return nil, failure(log, "schedule add", err, "provider not found", slog.String("provider_id", req.ProviderID))
	}

	log.Info(
		"schedule added",
		slog.String("schedule_id", sched.ID.String()),
		slog.String("provider_id", sched.ProviderID),
		slog.Int("day_of_week", int(sched.DayOfWeek)),
	)
	return encode(log, ScheduleResponse{Schedule: sched})
}

func (s *AvailabilityServer) RemoveRecurringSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RemoveRecurringSchedule"))

	var req ScheduleRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "schedule_id", req.ScheduleID, req.ProviderID)
	if err != nil {
		return nil, err
	}

	if err := s.svc.RemoveRecurringSchedule(ctx, req.ProviderID, id); err != nil {
		return nil, failure(log, "schedule remove", err, "schedule not found", slog.String("schedule_id", id.String()), slog.String("provider_id", req.ProviderID))
	}

	log.Info("schedule removed", slog.String("schedule_id", id.String()), slog.String("provider_id", req.ProviderID))
	return encode(log, Empty{})
}

func (s *AvailabilityServer) AddException(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "AddException"))

	var req AddExceptionRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	slots := make([]availability.OverrideSlotInput, 0, len(req.Slots))
	for _, sl := range req.Slots {
		if sl.StartTime == nil || sl.EndTime == nil {
			log.Warn("invalid request", slog.String("reason", "missing_slot_times"), slog.String("provider_id", req.ProviderID))
			return nil, status.Error(codes.InvalidArgument, "override slots need start_time and end_time")
		}
		slots = append(slots, availability.OverrideSlotInput{
			ServiceType: sl.ServiceType,
			StartTime:   *sl.StartTime,
			EndTime:     *sl.EndTime,
		})
	}

	exc, err := s.svc.AddException(ctx, availability.AddExceptionInput{
		ProviderID: req.ProviderID,
		Date:       req.Date,
		Kind:       req.Kind,
		Slots:      slots,
	})
	if err != nil {
		return nil, failure(log, "exception add", err, "provider not found", slog.String("provider_id", req.ProviderID), slog.String("date", req.Date))
	}

	log.Info(
		"exception added",
		slog.String("exception_id", exc.ID.String()),
		slog.String("provider_id", exc.ProviderID),
		slog.String("date", exc.Date.String()),
		slog.String("kind", string(exc.Kind)),
	)
	return encode(log, ExceptionResponse{Exception: exc})
}

func (s *AvailabilityServer) RemoveException(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RemoveException"))

	var req ExceptionRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "exception_id", req.ExceptionID, req.ProviderID)
	if err != nil {
		return nil, err
	}

	if err := s.svc.RemoveException(ctx, req.ProviderID, id); err != nil {
		return nil, failure(log, "exception remove", err, "exception not found", slog.String("exception_id", id.String()), slog.String("provider_id", req.ProviderID))
	}

	log.Info("exception removed", slog.String("exception_id", id.String()), slog.String("provider_id", req.ProviderID))
	return encode(log, Empty{})
}

func (s *AvailabilityServer) BookSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "BookSlot"))

	var req SlotRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "slot_id", req.SlotID, req.ProviderID)
	if err != nil {
		return nil, err
	}
	ref := req.BookingRef
	if strings.TrimSpace(ref) == "" {
		ref = idempotencyKey(ctx)
	}

	slot, err := s.svc.BookSlot(ctx, req.ProviderID, id, ref)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info("slot already booked", slog.String("slot_id", id.String()), slog.String("provider_id", req.ProviderID))
			return nil, status.Error(codes.FailedPrecondition, "That slot is already booked. Pick a different slot.")
		}
		return nil, failure(log, "slot book", err, "slot not found", slog.String("slot_id", id.String()), slog.String("provider_id", req.ProviderID))
	}

	log.Info("slot booked", slog.String("slot_id", slot.ID.String()), slog.String("provider_id", slot.ProviderID))
	return encode(log, SlotResponse{Slot: slot})
}

func (s *AvailabilityServer) UnbookSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UnbookSlot"))

	var req SlotRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "slot_id", req.SlotID, req.ProviderID)
	if err != nil {
		return nil, err
	}

	slot, err := s.svc.UnbookSlot(ctx, req.ProviderID, id)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Info("slot not booked", slog.String("slot_id", id.String()), slog.String("provider_id", req.ProviderID))
			return nil, status.Error(codes.FailedPrecondition, "That slot is not booked.")
		}
		return nil, failure(log, "slot unbook", err, "slot not found", slog.String("slot_id", id.String()), slog.String("provider_id", req.ProviderID))
	}

	log.Info("slot unbooked", slog.String("slot_id", slot.ID.String()), slog.String("provider_id", slot.ProviderID))
	return encode(log, SlotResponse{Slot: slot})
}

func (s *AvailabilityServer) Reserve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "Reserve"))

	var req ReserveRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}
	ref := req.BookingRef
	if strings.TrimSpace(ref) == "" {
		ref = idempotencyKey(ctx)
	}

	slot, err := s.svc.Reserve(ctx, availability.ReserveInput{
		ProviderID:  req.ProviderID,
		ServiceType: req.ServiceType,
		StartTime:   *req.StartTime,
		EndTime:     *req.EndTime,
		BookingRef:  ref,
	})
	if err != nil {
		return nil, failure(log, "reserve", err, "provider not found",
			slog.String("provider_id", req.ProviderID),
			slog.Time("start_time", *req.StartTime),
			slog.Time("end_time", *req.EndTime),
		)
	}

	log.Info(
		"slot reserved",
		slog.String("slot_id", slot.ID.String()),
		slog.String("provider_id", slot.ProviderID),
		slog.Time("start_time", slot.Start),
		slog.Time("end_time", slot.End),
	)
	return encode(log, SlotResponse{Slot: slot})
}

func (s *AvailabilityServer) ListAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListAvailableSlots"))

	var req ListAvailableSlotsRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}

	slots, err := s.svc.ListAvailableSlots(ctx, availability.ListAvailableSlotsInput{
		ProviderID:  req.ProviderID,
		From:        req.From,
		To:          req.To,
		ServiceType: req.ServiceType,
	})
	if err != nil {
		return nil, failure(log, "slots list", err, "provider not found", slog.String("provider_id", req.ProviderID))
	}
	if slots == nil {
		slots = []domain.TimeSlot{}
	}

	log.Debug(
		"slots listed",
		slog.String("provider_id", req.ProviderID),
		slog.Int("count", len(slots)),
		slog.String("from", req.From),
		slog.String("to", req.To),
	)
	return encode(log, ListAvailableSlotsResponse{Slots: slots})
}

func (s *AvailabilityServer) CheckAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CheckAvailability"))

	var req CheckAvailabilityRequest
	if err := decode(log, in, &req); err != nil {
		return nil, err
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("provider_id", req.ProviderID))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}

	ok, err := s.svc.CheckAvailability(ctx, req.ProviderID, req.ServiceType, *req.StartTime, *req.EndTime)
	if err != nil {
		return nil, failure(log, "availability check", err, "provider not found", slog.String("provider_id", req.ProviderID))
	}

	log.Debug("availability checked", slog.String("provider_id", req.ProviderID), slog.Bool("available", ok))
	return encode(log, CheckAvailabilityResponse{Available: ok})
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func decode(log *slog.Logger, in *structpb.Struct, dst any) error {
	if in == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return status.Error(codes.InvalidArgument, "request is required")
	}
	if err := fromStruct(in, dst); err != nil {
		log.Warn("invalid request", slog.String("reason", "malformed"), slog.Any("err", err))
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	return nil
}

func encode(log *slog.Logger, v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		log.Error("response encode failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func parseID(log *slog.Logger, field, raw, providerID string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("provider_id", providerID))
		return uuid.Nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
	}
	return id, nil
}

// failure maps service errors onto status codes. Unknown errors are logged
// and hidden behind Internal.
func failure(log *slog.Logger, op string, err error, notFound string, attrs ...any) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info(op+" not found", attrs...)
		return status.Error(codes.NotFound, notFound)
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(op+" idempotency conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "This booking reference was already used for a different slot. Try again.")
	case errors.Is(err, store.ErrConflict):
		log.Info(op+" conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "That time is not available. Pick a different slot.")
	case errors.Is(err, store.ErrStaleVersion):
		log.Info(op+" concurrent update", attrs...)
		return status.Error(codes.Aborted, "availability changed concurrently, retry")
	}
	var vErr *availability.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	}
	log.Error(op+" failed", append(attrs, slog.Any("err", err))...)
	return status.Error(codes.Internal, "internal error")
}
