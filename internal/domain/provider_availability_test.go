package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newAggregate(t *testing.T) *ProviderAvailability {
	t.Helper()
	p, err := NewProviderAvailability(testProvider, "UTC", WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("NewProviderAvailability error: %v", err)
	}
	return p
}

func mustSlot(t *testing.T, st ServiceType, start, end time.Time) TimeSlot {
	t.Helper()
	s, err := NewTimeSlot(testProvider, st, start, end)
	if err != nil {
		t.Fatalf("NewTimeSlot error: %v", err)
	}
	return s
}

func TestNewProviderAvailability_Validation(t *testing.T) {
	if _, err := NewProviderAvailability("", "UTC"); !errors.Is(err, ErrMissingProvider) {
		t.Fatalf("error = %v, want ErrMissingProvider", err)
	}
	if _, err := NewProviderAvailability(testProvider, "Not/AZone"); !errors.Is(err, ErrInvalidTimeZone) {
		t.Fatalf("error = %v, want ErrInvalidTimeZone", err)
	}
}

func TestAvailableTimeSlots_BlockedMonday(t *testing.T) {
	p := newAggregate(t)
	if err := p.AddRecurringSchedule(mustSchedule(t, Monday, "09:00", "11:00", ServiceTypePhysicalTherapy)); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	if got := p.AvailableTimeSlots(singleDay(monday), nil); len(got) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(got))
	}

	blocked, err := NewBlockedDay(testProvider, monday)
	if err != nil {
		t.Fatalf("NewBlockedDay error: %v", err)
	}
	if err := p.AddException(blocked); err != nil {
		t.Fatalf("AddException error: %v", err)
	}
	if got := p.AvailableTimeSlots(singleDay(monday), nil); len(got) != 0 {
		t.Fatalf("len(slots) = %d, want 0", len(got))
	}
	if got := p.AvailableTimeSlots(singleDay(monday.AddDays(7)), nil); len(got) != 2 {
		t.Fatalf("following Monday len(slots) = %d, want 2", len(got))
	}

	if !p.RemoveException(blocked.ID) {
		t.Fatalf("RemoveException returned false")
	}
	if got := p.AvailableTimeSlots(singleDay(monday), nil); len(got) != 2 {
		t.Fatalf("after removal len(slots) = %d, want 2", len(got))
	}
}

func TestDirectSlot_AvailabilityAndBooking(t *testing.T) {
	p := newAggregate(t)
	start := time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC)
	slot := mustSlot(t, ServiceTypeOccupationalTherapy, start, end)

	ok, err := p.AddTimeSlot(slot)
	if err != nil || !ok {
		t.Fatalf("AddTimeSlot = %v, %v", ok, err)
	}
	if !p.IsAvailable(start, end, ServiceTypeOccupationalTherapy) {
		t.Fatalf("expected direct slot to be available")
	}
	if p.IsAvailable(start, end, ServiceTypePhysicalTherapy) {
		t.Fatalf("wrong service type must not be available")
	}

	if !p.BookSlot(slot.ID, "booking-1") {
		t.Fatalf("BookSlot returned false")
	}
	if p.IsAvailable(start, end, ServiceTypeOccupationalTherapy) {
		t.Fatalf("booked slot must not be available")
	}
	if p.BookSlot(slot.ID, "booking-2") {
		t.Fatalf("second BookSlot must fail")
	}
	got, _ := p.TimeSlot(slot.ID)
	if got.BookingRef == nil || *got.BookingRef != "booking-1" {
		t.Fatalf("booking ref overwritten: %v", got.BookingRef)
	}

	if !p.UnbookSlot(slot.ID) {
		t.Fatalf("UnbookSlot returned false")
	}
	if p.UnbookSlot(slot.ID) {
		t.Fatalf("UnbookSlot on unbooked slot must fail")
	}
	if !p.BookSlot(slot.ID, "booking-3") {
		t.Fatalf("BookSlot after unbook returned false")
	}
}

func TestBookSlot_RejectsUnknownAndEmptyRef(t *testing.T) {
	p := newAggregate(t)
	slot := mustSlot(t, ServiceTypeNursingVisit,
		time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC))
	if _, err := p.AddTimeSlot(slot); err != nil {
		t.Fatalf("AddTimeSlot error: %v", err)
	}
	if p.BookSlot(slot.ID, "  ") {
		t.Fatalf("BookSlot with blank ref must fail")
	}
	unknown := mustSlot(t, ServiceTypeNursingVisit, slot.Start, slot.End)
	if p.BookSlot(unknown.ID, "ref") {
		t.Fatalf("BookSlot on unknown id must fail")
	}
}

func TestAddTimeSlot_Conflict(t *testing.T) {
	p := newAggregate(t)
	first := mustSlot(t, ServiceTypePhysicalTherapy,
		time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	if ok, err := p.AddTimeSlot(first); err != nil || !ok {
		t.Fatalf("AddTimeSlot = %v, %v", ok, err)
	}
	before := p.Version()

	overlapping := mustSlot(t, ServiceTypePhysicalTherapy,
		time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC))
	ok, err := p.AddTimeSlot(overlapping)
	if err != nil {
		t.Fatalf("AddTimeSlot error: %v", err)
	}
	if ok {
		t.Fatalf("overlapping slot must be rejected")
	}
	if p.Version() != before || len(p.TimeSlots()) != 1 {
		t.Fatalf("rejected add mutated aggregate")
	}

	touching := mustSlot(t, ServiceTypePhysicalTherapy,
		time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC))
	if ok, err := p.AddTimeSlot(touching); err != nil || !ok {
		t.Fatalf("touching slot AddTimeSlot = %v, %v", ok, err)
	}
	if ok, _ := p.AddTimeSlot(touching); ok {
		t.Fatalf("duplicate id must be rejected")
	}
}

func TestAddTimeSlot_FailsFast(t *testing.T) {
	p := newAggregate(t)
	foreign, err := NewTimeSlot("other", ServiceTypePhysicalTherapy,
		time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewTimeSlot error: %v", err)
	}
	if _, err := p.AddTimeSlot(foreign); !errors.Is(err, ErrProviderMismatch) {
		t.Fatalf("error = %v, want ErrProviderMismatch", err)
	}

	inverted := TimeSlot{
		ProviderID:  testProvider,
		ServiceType: ServiceTypePhysicalTherapy,
		Start:       time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	if _, err := p.AddTimeSlot(inverted); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("error = %v, want ErrInvalidTimeRange", err)
	}
}

func TestAvailableTimeSlots_BookedSlotHidesOverlappingGenerated(t *testing.T) {
	p := newAggregate(t)
	if err := p.AddRecurringSchedule(mustSchedule(t, Monday, "09:00", "11:00", ServiceTypePhysicalTherapy)); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	held := mustSlot(t, ServiceTypePhysicalTherapy,
		time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	if _, err := p.AddTimeSlot(held); err != nil {
		t.Fatalf("AddTimeSlot error: %v", err)
	}

	got := p.AvailableTimeSlots(singleDay(monday), nil)
	if len(got) != 3 {
		t.Fatalf("unbooked held slot plus generated: len = %d, want 3", len(got))
	}

	p.BookSlot(held.ID, "booking-1")
	got = p.AvailableTimeSlots(singleDay(monday), nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !got[0].Start.Equal(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("remaining slot start = %v", got[0].Start)
	}
	if p.IsAvailable(held.Start, held.End, ServiceTypePhysicalTherapy) {
		t.Fatalf("window covered by booked slot must not be available")
	}
	if !p.IsAvailable(got[0].Start, got[0].End, ServiceTypePhysicalTherapy) {
		t.Fatalf("generated slot must be available")
	}
}

func TestAvailableTimeSlots_FilterAndSort(t *testing.T) {
	p := newAggregate(t)
	if err := p.AddRecurringSchedule(mustSchedule(t, Monday, "09:00", "11:00",
		ServiceTypeCaseManagement, ServiceTypePhysicalTherapy)); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	all := p.AvailableTimeSlots(singleDay(monday), nil)
	if len(all) != 6 {
		t.Fatalf("len = %d, want 6", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Start.Before(all[i-1].Start) {
			t.Fatalf("slots not sorted by start")
		}
	}
	st := ServiceTypePhysicalTherapy
	if got := p.AvailableTimeSlots(singleDay(monday), &st); len(got) != 2 {
		t.Fatalf("filtered len = %d, want 2", len(got))
	}
}

func TestIsAvailable_Schedule(t *testing.T) {
	p := newAggregate(t)
	if err := p.AddRecurringSchedule(mustSchedule(t, Monday, "09:00", "11:00", ServiceTypePhysicalTherapy)); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	at := func(h, m int) time.Time { return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end time.Time
		st         ServiceType
		want       bool
	}{
		{name: "inside window", start: at(9, 30), end: at(10, 30), st: ServiceTypePhysicalTherapy, want: true},
		{name: "whole window", start: at(9, 0), end: at(11, 0), st: ServiceTypePhysicalTherapy, want: true},
		{name: "past window end", start: at(10, 30), end: at(11, 30), st: ServiceTypePhysicalTherapy, want: false},
		{name: "other service", start: at(9, 0), end: at(10, 0), st: ServiceTypeSpeechTherapy, want: false},
		{name: "empty window", start: at(9, 0), end: at(9, 0), st: ServiceTypePhysicalTherapy, want: false},
		{name: "other weekday", start: at(9, 0).AddDate(0, 0, 1), end: at(10, 0).AddDate(0, 0, 1), st: ServiceTypePhysicalTherapy, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsAvailable(tt.start, tt.end, tt.st); got != tt.want {
				t.Fatalf("IsAvailable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAvailable_OverrideReplacesSchedule(t *testing.T) {
	p := newAggregate(t)
	if err := p.AddRecurringSchedule(mustSchedule(t, Monday, "09:00", "11:00", ServiceTypePhysicalTherapy)); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	replacement := mustSlot(t, ServiceTypeNursingVisit,
		time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 15, 30, 0, 0, time.UTC))
	override, err := NewOverriddenDay(testProvider, monday, []TimeSlot{replacement})
	if err != nil {
		t.Fatalf("NewOverriddenDay error: %v", err)
	}
	if err := p.AddException(override); err != nil {
		t.Fatalf("AddException error: %v", err)
	}

	if p.IsAvailable(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), ServiceTypePhysicalTherapy) {
		t.Fatalf("schedule window must be replaced by override")
	}
	if !p.IsAvailable(replacement.Start, replacement.End, ServiceTypeNursingVisit) {
		t.Fatalf("override slot must be available")
	}
	got := p.AvailableTimeSlots(singleDay(monday), nil)
	if len(got) != 1 || got[0].ID != replacement.ID {
		t.Fatalf("AvailableTimeSlots = %+v, want only override slot", got)
	}
}

func TestMutations_BumpVersion(t *testing.T) {
	p := newAggregate(t)
	v0, u0 := p.Version(), p.UpdatedAt()

	sched := mustSchedule(t, Monday, "09:00", "11:00", ServiceTypePhysicalTherapy)
	if err := p.AddRecurringSchedule(sched); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	if p.Version() != v0+1 || !p.UpdatedAt().After(u0) {
		t.Fatalf("version = %d, updated_at = %v", p.Version(), p.UpdatedAt())
	}
	if err := p.AddRecurringSchedule(sched); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("error = %v, want ErrDuplicateID", err)
	}
	if !p.RemoveRecurringSchedule(sched.ID) || p.Version() != v0+2 {
		t.Fatalf("RemoveRecurringSchedule did not bump version")
	}
	if p.RemoveRecurringSchedule(sched.ID) || p.Version() != v0+2 {
		t.Fatalf("failed removal must not bump version")
	}
}

func TestValidate_JoinsFailures(t *testing.T) {
	ref := "   "
	snap := Snapshot{
		ProviderID: testProvider,
		TimeZone:   "UTC",
		Slots: []TimeSlot{
			{ProviderID: testProvider, ServiceType: ServiceTypePhysicalTherapy, Start: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)},
			{ProviderID: "other", ServiceType: ServiceTypePhysicalTherapy, Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), Booked: true, BookingRef: &ref},
		},
	}
	p, err := FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot error: %v", err)
	}
	err = p.Validate()
	if !errors.Is(err, ErrInvalidTimeRange) || !errors.Is(err, ErrProviderMismatch) || !errors.Is(err, ErrInvalidBooking) {
		t.Fatalf("Validate error = %v", err)
	}
	if newAggregate(t).Validate() != nil {
		t.Fatalf("empty aggregate must be valid")
	}
}

func TestOverrideSlots_MustStartOnExceptionDate(t *testing.T) {
	p, err := NewProviderAvailability(testProvider, "America/New_York", WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("NewProviderAvailability error: %v", err)
	}
	// 03:00 UTC on the 6th is still the 5th in New York.
	lateMonday := mustSlot(t, ServiceTypeNursingVisit,
		time.Date(2026, 1, 6, 3, 0, 0, 0, time.UTC), time.Date(2026, 1, 6, 3, 30, 0, 0, time.UTC))
	sameDay, err := NewOverriddenDay(testProvider, monday, []TimeSlot{lateMonday})
	if err != nil {
		t.Fatalf("NewOverriddenDay error: %v", err)
	}
	if err := p.AddException(sameDay); err != nil {
		t.Fatalf("AddException error: %v", err)
	}

	tuesday := mustSlot(t, ServiceTypeNursingVisit,
		time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC), time.Date(2026, 1, 6, 15, 30, 0, 0, time.UTC))
	offDate, err := NewOverriddenDay(testProvider, monday, []TimeSlot{tuesday})
	if err != nil {
		t.Fatalf("NewOverriddenDay error: %v", err)
	}
	v := p.Version()
	if err := p.AddException(offDate); !errors.Is(err, ErrInvalidException) {
		t.Fatalf("error = %v, want ErrInvalidException", err)
	}
	if p.Version() != v {
		t.Fatalf("rejected exception bumped version")
	}

	snap := p.Snapshot()
	snap.Exceptions = append(snap.Exceptions, offDate)
	loaded, err := FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot error: %v", err)
	}
	if err := loaded.Validate(); !errors.Is(err, ErrInvalidException) {
		t.Fatalf("Validate error = %v, want ErrInvalidException", err)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	p, err := NewProviderAvailability(testProvider, "America/Chicago")
	if err != nil {
		t.Fatalf("NewProviderAvailability error: %v", err)
	}
	if err := p.AddRecurringSchedule(mustSchedule(t, Monday, "09:00", "12:00",
		ServiceTypePhysicalTherapy, ServiceTypeSpeechTherapy)); err != nil {
		t.Fatalf("AddRecurringSchedule error: %v", err)
	}
	held := mustSlot(t, ServiceTypePhysicalTherapy,
		time.Date(2026, 1, 5, 9, 0, 0, 0, loc), time.Date(2026, 1, 5, 10, 0, 0, 0, loc))
	if _, err := p.AddTimeSlot(held); err != nil {
		t.Fatalf("AddTimeSlot error: %v", err)
	}
	p.BookSlot(held.ID, "booking-1")
	blocked, _ := NewBlockedDay(testProvider, monday.AddDays(7))
	if err := p.AddException(blocked); err != nil {
		t.Fatalf("AddException error: %v", err)
	}

	raw, err := json.Marshal(p.Snapshot())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	restored, err := FromSnapshot(decoded)
	if err != nil {
		t.Fatalf("FromSnapshot error: %v", err)
	}
	if err := restored.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if restored.Version() != p.Version() {
		t.Fatalf("version = %d, want %d", restored.Version(), p.Version())
	}

	rng := DateRange{Start: monday, End: monday.AddDays(13)}
	want := p.AvailableTimeSlots(rng, nil)
	got := restored.AvailableTimeSlots(rng, nil)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) || got[i].ServiceType != want[i].ServiceType {
			t.Fatalf("slot %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
