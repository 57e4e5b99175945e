package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"availability/backend/internal/domain"
	"availability/backend/internal/service/availability"
	"availability/backend/internal/store"
)

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

// AvailabilityHandler exposes the availability service over JSON/HTTP.
type AvailabilityHandler struct {
	svc availabilityService
	log *slog.Logger
}

func NewAvailabilityHandler(svc availabilityService, log *slog.Logger) *AvailabilityHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.availability")),
	}
}

func (h *AvailabilityHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/providers", h.RegisterProvider)
	g.GET("/providers/:provider_id", h.GetAvailability)
	g.POST("/providers/:provider_id/slots", h.AddTimeSlot)
	g.DELETE("/providers/:provider_id/slots/:slot_id", h.RemoveTimeSlot)
	g.POST("/providers/:provider_id/slots/:slot_id/book", h.BookSlot)
	g.POST("/providers/:provider_id/slots/:slot_id/unbook", h.UnbookSlot)
	g.POST("/providers/:provider_id/schedules", h.AddRecurringSchedule)
	g.DELETE("/providers/:provider_id/schedules/:schedule_id", h.RemoveRecurringSchedule)
	g.POST("/providers/:provider_id/exceptions", h.AddException)
	g.DELETE("/providers/:provider_id/exceptions/:exception_id", h.RemoveException)
	g.POST("/providers/:provider_id/reservations", h.Reserve)
	g.GET("/providers/:provider_id/available-slots", h.ListAvailableSlots)
	g.GET("/providers/:provider_id/availability", h.CheckAvailability)
}

type registerProviderBody struct {
	ProviderID string `json:"provider_id"`
	TimeZone   string `json:"time_zone"`
}

// RegisterProvider handles POST /providers.
func (h *AvailabilityHandler) RegisterProvider(c echo.Context) error {
	var body registerProviderBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	snap, err := h.svc.RegisterProvider(c.Request().Context(), body.ProviderID, body.TimeZone)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "provider already registered")
		}
		return h.fail("provider register", err, "provider not found", slog.String("provider_id", body.ProviderID))
	}
	h.log.Info("provider registered", slog.String("provider_id", snap.ProviderID))
	return c.JSON(http.StatusCreated, snap)
}

// GetAvailability handles GET /providers/:provider_id.
func (h *AvailabilityHandler) GetAvailability(c echo.Context) error {
	providerID := c.Param("provider_id")
	snap, err := h.svc.GetAvailability(c.Request().Context(), providerID)
	if err != nil {
		return h.fail("availability get", err, "provider not found", slog.String("provider_id", providerID))
	}
	return c.JSON(http.StatusOK, snap)
}

type addTimeSlotBody struct {
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

// AddTimeSlot handles POST /providers/:provider_id/slots.
func (h *AvailabilityHandler) AddTimeSlot(c echo.Context) error {
	providerID := c.Param("provider_id")
	var body addTimeSlotBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.StartTime == nil || body.EndTime == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time and end_time are required")
	}
	slot, err := h.svc.AddTimeSlot(c.Request().Context(), availability.AddTimeSlotInput{
		ProviderID:  providerID,
		ServiceType: body.ServiceType,
		StartTime:   *body.StartTime,
		EndTime:     *body.EndTime,
	})
	if err != nil {
		return h.fail("slot add", err, "provider not found", slog.String("provider_id", providerID))
	}
	h.log.Info("slot added", slog.String("provider_id", providerID), slog.String("slot_id", slot.ID.String()))
	return c.JSON(http.StatusCreated, slot)
}

// RemoveTimeSlot handles DELETE /providers/:provider_id/slots/:slot_id.
func (h *AvailabilityHandler) RemoveTimeSlot(c echo.Context) error {
	providerID := c.Param("provider_id")
	id, err := pathID(c, "slot_id")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveTimeSlot(c.Request().Context(), providerID, id); err != nil {
		return h.fail("slot remove", err, "slot not found", slog.String("provider_id", providerID), slog.String("slot_id", id.String()))
	}
	h.log.Info("slot removed", slog.String("provider_id", providerID), slog.String("slot_id", id.String()))
	return c.NoContent(http.StatusNoContent)
}

type bookSlotBody struct {
	BookingRef string `json:"booking_ref"`
}

// BookSlot handles POST /providers/:provider_id/slots/:slot_id/book.
func (h *AvailabilityHandler) BookSlot(c echo.Context) error {
	providerID := c.Param("provider_id")
	id, err := pathID(c, "slot_id")
	if err != nil {
		return err
	}
	var body bookSlotBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ref := body.BookingRef
	if strings.TrimSpace(ref) == "" {
		ref = idempotencyKey(c)
	}
	slot, err := h.svc.BookSlot(c.Request().Context(), providerID, id, ref)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "slot already booked")
		}
		return h.fail("slot book", err, "slot not found", slog.String("provider_id", providerID), slog.String("slot_id", id.String()))
	}
	h.log.Info("slot booked", slog.String("provider_id", providerID), slog.String("slot_id", id.String()))
	return c.JSON(http.StatusOK, slot)
}

// UnbookSlot handles POST /providers/:provider_id/slots/:slot_id/unbook.
func (h *AvailabilityHandler) UnbookSlot(c echo.Context) error {
	providerID := c.Param("provider_id")
	id, err := pathID(c, "slot_id")
	if err != nil {
		return err
	}
	slot, err := h.svc.UnbookSlot(c.Request().Context(), providerID, id)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "slot is not booked")
		}
		return h.fail("slot unbook", err, "slot not found", slog.String("provider_id", providerID), slog.String("slot_id", id.String()))
	}
	h.log.Info("slot unbooked", slog.String("provider_id", providerID), slog.String("slot_id", id.String()))
	return c.JSON(http.StatusOK, slot)
}

type addScheduleBody struct {
	DayOfWeek    int16    `json:"day_of_week"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	ServiceTypes []string `json:"service_types"`
}

// AddRecurringSchedule handles POST /providers/:provider_id/schedules.
func (h *AvailabilityHandler) AddRecurringSchedule(c echo.Context) error {
	providerID := c.Param("provider_id")
	var body addScheduleBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sched, err := h.svc.AddRecurringSchedule(c.Request().Context(), availability.AddRecurringScheduleInput{
		ProviderID:   providerID,
		DayOfWeek:    body.DayOfWeek,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		ServiceTypes: body.ServiceTypes,
	})
	if err != nil {
		return h.fail("schedule add", err, "provider not found", slog.String("provider_id", providerID))
	}
	h.log.Info("schedule added", slog.String("provider_id", providerID), slog.String("schedule_id", sched.ID.String()))
	return c.JSON(http.StatusCreated, sched)
}

// RemoveRecurringSchedule handles DELETE /providers/:provider_id/schedules/:schedule_id.
func (h *AvailabilityHandler) RemoveRecurringSchedule(c echo.Context) error {
	providerID := c.Param("provider_id")
	id, err := pathID(c, "schedule_id")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveRecurringSchedule(c.Request().Context(), providerID, id); err != nil {
		return h.fail("schedule remove", err, "schedule not found", slog.String("provider_id", providerID), slog.String("schedule_id", id.String()))
	}
	h.log.Info("schedule removed", slog.String("provider_id", providerID), slog.String("schedule_id", id.String()))
	return c.NoContent(http.StatusNoContent)
}

type overrideSlotBody struct {
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

type addExceptionBody struct {
	Date  string             `json:"date"`
	Kind  string             `json:"kind"`
	Slots []overrideSlotBody `json:"slots"`
}

// AddException handles POST /providers/:provider_id/exceptions.
func (h *AvailabilityHandler) AddException(c echo.Context) error {
	providerID := c.Param("provider_id")
	var body addExceptionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	slots := make([]availability.OverrideSlotInput, 0, len(body.Slots))
	for _, sl := range body.Slots {
		if sl.StartTime == nil || sl.EndTime == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "override slots need start_time and end_time")
		}
		slots = append(slots, availability.OverrideSlotInput{
			ServiceType: sl.ServiceType,
			StartTime:   *sl.StartTime,
			EndTime:     *sl.EndTime,
		})
	}
	exc, err := h.svc.AddException(c.Request().Context(), availability.AddExceptionInput{
		ProviderID: providerID,
		Date:       body.Date,
		Kind:       body.Kind,
		Slots:      slots,
	})
	if err != nil {
		return h.fail("exception add", err, "provider not found", slog.String("provider_id", providerID), slog.String("date", body.Date))
	}
	h.log.Info("exception added", slog.String("provider_id", providerID), slog.String("exception_id", exc.ID.String()))
	return c.JSON(http.StatusCreated, exc)
}

// RemoveException handles DELETE /providers/:provider_id/exceptions/:exception_id.
func (h *AvailabilityHandler) RemoveException(c echo.Context) error {
	providerID := c.Param("provider_id")
	id, err := pathID(c, "exception_id")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveException(c.Request().Context(), providerID, id); err != nil {
		return h.fail("exception remove", err, "exception not found", slog.String("provider_id", providerID), slog.String("exception_id", id.String()))
	}
	h.log.Info("exception removed", slog.String("provider_id", providerID), slog.String("exception_id", id.String()))
	return c.NoContent(http.StatusNoContent)
}

type reserveBody struct {
	ServiceType string     `json:"service_type"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	BookingRef  string     `json:"booking_ref"`
}

// Reserve handles POST /providers/:provider_id/reservations. The
// Idempotency-Key header stands in for booking_ref when the body omits it.
func (h *AvailabilityHandler) Reserve(c echo.Context) error {
	providerID := c.Param("provider_id")
	var body reserveBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.StartTime == nil || body.EndTime == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time and end_time are required")
	}
	ref := body.BookingRef
	if strings.TrimSpace(ref) == "" {
		ref = idempotencyKey(c)
	}
	slot, err := h.svc.Reserve(c.Request().Context(), availability.ReserveInput{
		ProviderID:  providerID,
		ServiceType: body.ServiceType,
		StartTime:   *body.StartTime,
		EndTime:     *body.EndTime,
		BookingRef:  ref,
	})
	if err != nil {
		return h.fail("reserve", err, "provider not found", slog.String("provider_id", providerID))
	}
	h.log.Info("slot reserved", slog.String("provider_id", providerID), slog.String("slot_id", slot.ID.String()))
	return c.JSON(http.StatusCreated, slot)
}

type slotsResponse struct {
	Slots []domain.TimeSlot `json:"slots"`
}

// ListAvailableSlots handles GET /providers/:provider_id/available-slots.
func (h *AvailabilityHandler) ListAvailableSlots(c echo.Context) error {
	providerID := c.Param("provider_id")
	from := c.QueryParam("from")
	to := c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to query parameters are required")
	}
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), availability.ListAvailableSlotsInput{
		ProviderID:  providerID,
		From:        from,
		To:          to,
		ServiceType: c.QueryParam("service_type"),
	})
	if err != nil {
		return h.fail("slots list", err, "provider not found", slog.String("provider_id", providerID))
	}
	if slots == nil {
		slots = []domain.TimeSlot{}
	}
	return c.JSON(http.StatusOK, slotsResponse{Slots: slots})
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

// CheckAvailability handles GET /providers/:provider_id/availability.
func (h *AvailabilityHandler) CheckAvailability(c echo.Context) error {
	providerID := c.Param("provider_id")
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be an RFC 3339 timestamp")
	}
	ok, err := h.svc.CheckAvailability(c.Request().Context(), providerID, c.QueryParam("service_type"), start, end)
	if err != nil {
		return h.fail("availability check", err, "provider not found", slog.String("provider_id", providerID))
	}
	return c.JSON(http.StatusOK, availabilityResponse{Available: ok})
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a UUID")
	}
	return id, nil
}

func idempotencyKey(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
}

func (h *AvailabilityHandler) fail(op string, err error, notFound string, attrs ...any) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrIdempotencyConflict):
		return echo.NewHTTPError(http.StatusConflict, "booking reference already used for a different slot")
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "time is not available")
	case errors.Is(err, store.ErrStaleVersion):
		return echo.NewHTTPError(http.StatusConflict, "availability changed concurrently, retry")
	case availability.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	h.log.Error(op+" failed", append(attrs, slog.Any("err", err))...)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
