package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"availability/backend/internal/domain"
)

type providerRow struct {
	bun.BaseModel `bun:"table:provider_availability"`

	ProviderID string    `bun:"provider_id,pk"`
	TimeZone   string    `bun:"time_zone,notnull"`
	Version    int64     `bun:"version,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (p *providerRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
	}
	return nil
}

type slotRow struct {
	bun.BaseModel `bun:"table:availability_slots"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID  string    `bun:"provider_id,notnull"`
	Seq         int       `bun:"seq,notnull"`
	ServiceType string    `bun:"service_type,notnull"`
	StartTime   time.Time `bun:"start_time,notnull"`
	EndTime     time.Time `bun:"end_time,notnull"`
	Booked      bool      `bun:"booked,notnull"`
	BookingRef  *string   `bun:"booking_ref"`
}

type scheduleRow struct {
	bun.BaseModel `bun:"table:recurring_schedules"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID   string    `bun:"provider_id,notnull"`
	Seq          int       `bun:"seq,notnull"`
	DayOfWeek    int16     `bun:"day_of_week,notnull"`
	StartTime    string    `bun:"start_time,notnull"`
	EndTime      string    `bun:"end_time,notnull"`
	ServiceTypes []string  `bun:"service_types,array,notnull"`
}

type exceptionRow struct {
	bun.BaseModel `bun:"table:availability_exceptions"`

	ID            uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID    string            `bun:"provider_id,notnull"`
	Seq           int               `bun:"seq,notnull"`
	ExceptionDate time.Time         `bun:"exception_date,type:date,notnull"`
	Kind          string            `bun:"kind,notnull"`
	OverrideSlots []domain.TimeSlot `bun:"override_slots,type:jsonb"`
}

func slotRows(providerID string, slots []domain.TimeSlot) []slotRow {
	rows := make([]slotRow, 0, len(slots))
	for i, s := range slots {
		rows = append(rows, slotRow{
			ID:          s.ID,
			ProviderID:  providerID,
			Seq:         i,
			ServiceType: string(s.ServiceType),
			StartTime:   s.Start.UTC(),
			EndTime:     s.End.UTC(),
			Booked:      s.Booked,
			BookingRef:  s.BookingRef,
		})
	}
	return rows
}

func scheduleRows(providerID string, schedules []domain.RecurringSchedule) []scheduleRow {
	rows := make([]scheduleRow, 0, len(schedules))
	for i, s := range schedules {
		types := make([]string, len(s.ServiceTypes))
		for j, st := range s.ServiceTypes {
			types[j] = string(st)
		}
		rows = append(rows, scheduleRow{
			ID:           s.ID,
			ProviderID:   providerID,
			Seq:          i,
			DayOfWeek:    int16(s.DayOfWeek),
			StartTime:    s.StartTime.String(),
			EndTime:      s.EndTime.String(),
			ServiceTypes: types,
		})
	}
	return rows
}

func exceptionRows(providerID string, exceptions []domain.AvailabilityException) []exceptionRow {
	rows := make([]exceptionRow, 0, len(exceptions))
	for i, e := range exceptions {
		rows = append(rows, exceptionRow{
			ID:            e.ID,
			ProviderID:    providerID,
			Seq:           i,
			ExceptionDate: e.Date.At(domain.TimeOfDay{}, time.UTC),
			Kind:          string(e.Kind),
			OverrideSlots: e.Slots,
		})
	}
	return rows
}

// toSnapshot rebuilds the domain record. Stored values are trusted here;
// callers validate the aggregate they build from it.
func toSnapshot(p providerRow, slots []slotRow, schedules []scheduleRow, exceptions []exceptionRow) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		ProviderID: p.ProviderID,
		TimeZone:   p.TimeZone,
		Version:    p.Version,
		UpdatedAt:  p.UpdatedAt.UTC(),
		Slots:      make([]domain.TimeSlot, 0, len(slots)),
		Schedules:  make([]domain.RecurringSchedule, 0, len(schedules)),
		Exceptions: make([]domain.AvailabilityException, 0, len(exceptions)),
	}

	for _, r := range slots {
		snap.Slots = append(snap.Slots, domain.TimeSlot{
			ID:          r.ID,
			ProviderID:  r.ProviderID,
			ServiceType: domain.ServiceType(r.ServiceType),
			Start:       r.StartTime.UTC(),
			End:         r.EndTime.UTC(),
			Booked:      r.Booked,
			BookingRef:  r.BookingRef,
		})
	}

	for _, r := range schedules {
		start, err := domain.ParseTimeOfDay(r.StartTime)
		if err != nil {
			return domain.Snapshot{}, err
		}
		end, err := domain.ParseTimeOfDay(r.EndTime)
		if err != nil {
			return domain.Snapshot{}, err
		}
		types := make([]domain.ServiceType, len(r.ServiceTypes))
		for i, st := range r.ServiceTypes {
			types[i] = domain.ServiceType(st)
		}
		snap.Schedules = append(snap.Schedules, domain.RecurringSchedule{
			ID:           r.ID,
			ProviderID:   r.ProviderID,
			DayOfWeek:    domain.DayOfWeek(r.DayOfWeek),
			StartTime:    start,
			EndTime:      end,
			ServiceTypes: types,
		})
	}

	for _, r := range exceptions {
		snap.Exceptions = append(snap.Exceptions, domain.AvailabilityException{
			ID:         r.ID,
			ProviderID: r.ProviderID,
			Date:       domain.NewDate(r.ExceptionDate.Year(), r.ExceptionDate.Month(), r.ExceptionDate.Day()),
			Kind:       domain.ExceptionKind(r.Kind),
			Slots:      r.OverrideSlots,
		})
	}

	return snap, nil
}
