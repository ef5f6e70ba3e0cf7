package scheduling

import (
	"iter"
	"time"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share an instant. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflict returns the first non-cancelled appointment overlapping
// [start, end), or nil.
func FindConflict(start, end time.Time, booked []models.Appointment) *models.Appointment {
	for i := range booked {
		a := &booked[i]
		if a.IsCancelled() {
			continue
		}
		if Overlaps(start, end, a.StartTime, a.EndTime) {
			return a
		}
	}
	return nil
}

// FilterAvailable keeps the candidates whose [s, s+duration) overlaps no
// non-cancelled appointment in booked.
func FilterAvailable(candidates iter.Seq[time.Time], duration time.Duration, booked []models.Appointment) iter.Seq[time.Time] {
	active := make([]models.Appointment, 0, len(booked))
	for _, a := range booked {
		if !a.IsCancelled() {
			active = append(active, a)
		}
	}

	return func(yield func(time.Time) bool) {
		for s := range candidates {
			if FindConflict(s, s.Add(duration), active) != nil {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// NotBefore drops candidates starting before t.
func NotBefore(candidates iter.Seq[time.Time], t time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for s := range candidates {
			if s.Before(t) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}
