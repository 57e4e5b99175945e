package domain

import "time"

// Overlaps treats both intervals as half-open, so touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// IsConflict reports whether candidate overlaps any slot in existing.
func IsConflict(candidate TimeSlot, existing []TimeSlot) bool {
	return conflictsWith(candidate.Start, candidate.End, existing)
}

func conflictsWith(start, end time.Time, existing []TimeSlot) bool {
	for _, e := range existing {
		if Overlaps(start, end, e.Start, e.End) {
			return true
		}
	}
	return false
}
