package domain

import "time"

// GenerateTimeSlots expands schedules over every date in rng. For each matching
// schedule and each of its service types it emits back-to-back slots of the
// type's default duration, starting at the schedule start and stopping before
// a slot would run past the schedule end. Output order is date, then schedule
// order, then service type order, then time.
func GenerateTimeSlots(schedules []RecurringSchedule, rng DateRange, providerID string, loc *time.Location) []TimeSlot {
	if loc == nil {
		loc = time.UTC
	}
	days := rng.Days()
	if days == 0 || len(schedules) == 0 {
		return []TimeSlot{}
	}

	out := make([]TimeSlot, 0, days*len(schedules))
	for i := 0; i < days; i++ {
		date := rng.Start.AddDays(i)
		dow := DayOfWeekOf(date)

		for _, sched := range schedules {
			if sched.DayOfWeek != dow {
				continue
			}
			windowStart := date.At(sched.StartTime, loc)
			windowEnd := date.At(sched.EndTime, loc)

			for _, st := range sched.ServiceTypes {
				duration := st.DefaultDuration()
				if duration <= 0 {
					continue
				}
				for cur := windowStart; !cur.Add(duration).After(windowEnd); cur = cur.Add(duration) {
					out = append(out, TimeSlot{
						ID:          generatedSlotID(providerID, sched.ID, st, cur),
						ProviderID:  providerID,
						ServiceType: st,
						Start:       cur,
						End:         cur.Add(duration),
					})
				}
			}
		}
	}
	return out
}
