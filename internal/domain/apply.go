package domain

import "time"

// ApplyExceptions removes the slots of every excepted date and, for overrides,
// appends the replacement slots. When several exceptions target the same date
// the one latest in the slice wins.
func ApplyExceptions(slots []TimeSlot, exceptions []AvailabilityException, loc *time.Location) []TimeSlot {
	if len(exceptions) == 0 {
		return slots
	}
	if loc == nil {
		loc = time.UTC
	}

	effective := effectiveExceptions(exceptions)

	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if _, excepted := effective[DateOf(s.Start, loc)]; excepted {
			continue
		}
		out = append(out, s)
	}

	// Walk the input again so appended overrides keep a deterministic order.
	appended := make(map[Date]struct{}, len(effective))
	for _, e := range exceptions {
		winner := effective[e.Date]
		if winner.ID != e.ID || winner.Kind != ExceptionKindOverride {
			continue
		}
		if _, ok := appended[e.Date]; ok {
			continue
		}
		appended[e.Date] = struct{}{}
		out = append(out, cloneSlots(winner.Slots)...)
	}
	return out
}

func effectiveExceptions(exceptions []AvailabilityException) map[Date]AvailabilityException {
	byDate := make(map[Date]AvailabilityException, len(exceptions))
	for _, e := range exceptions {
		byDate[e.Date] = e
	}
	return byDate
}
