package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar date with no time zone attached. It is turned into
// instants only through At, using the provider's location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

func ParseDate(text string) (Date, error) {
	t, err := time.Parse(dateLayout, text)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, text)
	}
	return DateOf(t, time.UTC), nil
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// At returns the instant at which the wall clock in loc reads tod on d.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.midnightUTC().AddDate(0, 0, n), time.UTC)
}

func (d Date) Before(o Date) bool { return d.midnightUTC().Before(o.midnightUTC()) }
func (d Date) After(o Date) bool  { return d.midnightUTC().After(o.midnightUTC()) }
func (d Date) IsZero() bool       { return d == Date{} }

func (d Date) String() string {
	return d.midnightUTC().Format(dateLayout)
}

func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is inclusive on both ends.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewDateRange(start, end Date) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: range %s..%s", ErrInvalidTimeRange, start, end)
	}
	return DateRange{Start: start, End: end}, nil
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar dates covered by the range.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.midnightUTC().Sub(r.Start.midnightUTC())/(24*time.Hour)) + 1
}

// DayOfWeek uses ISO numbering: Monday=1 through Sunday=7.
type DayOfWeek int16

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int16(d))
	}
	return d.Weekday().String()
}

// Weekday converts to the standard library's Sunday-first numbering.
func (d DayOfWeek) Weekday() time.Weekday {
	if d == Sunday {
		return time.Sunday
	}
	return time.Weekday(d)
}

func DayOfWeekFromWeekday(wd time.Weekday) DayOfWeek {
	if wd == time.Sunday {
		return Sunday
	}
	return DayOfWeek(wd)
}

// DayOfWeekOf is the one date-to-weekday mapping used everywhere.
func DayOfWeekOf(d Date) DayOfWeek {
	return DayOfWeekFromWeekday(d.midnightUTC().Weekday())
}

func (d DayOfWeek) MarshalJSON() ([]byte, error) {
	return json.Marshal(int16(d))
}

func (d *DayOfWeek) UnmarshalJSON(data []byte) error {
	var n int16
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: day_of_week", ErrInvalidDayOfWeek)
	}
	v := DayOfWeek(n)
	if !v.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDayOfWeek, n)
	}
	*d = v
	return nil
}
