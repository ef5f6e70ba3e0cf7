package scheduling

import (
	"fmt"
	"time"

	"github.com/harentsoaR/clinic-scheduler/internal/models"
)

const TimeOfDayLayout = "15:04"

// Window is a doctor's working interval [Start, End) on one date.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ResolveWorkingHours returns the doctor's working window on the calendar
// date of date, in date's location. ok is false when the doctor does not
// work that day: inactive, weekday not among WorkingDays, or no schedule
// entry for it. Malformed hours are a configuration error.
func ResolveWorkingHours(doctor *models.Doctor, date time.Time) (w Window, ok bool, err error) {
	if doctor == nil || !doctor.Active {
		return Window{}, false, nil
	}

	weekday := models.Weekdays[date.Weekday()]
	if !doctor.WorksOn(weekday) {
		return Window{}, false, nil
	}
	hours := doctor.Schedule[weekday]
	if hours == nil {
		return Window{}, false, nil
	}

	start, err := OnDate(date, hours.Start)
	if err != nil {
		return Window{}, false, fmt.Errorf("%w: %s start: %w", ErrConfiguration, weekday, err)
	}
	end, err := OnDate(date, hours.End)
	if err != nil {
		return Window{}, false, fmt.Errorf("%w: %s end: %w", ErrConfiguration, weekday, err)
	}
	if !end.After(start) {
		return Window{}, false, fmt.Errorf("%w: %s hours end %s is not after start %s",
			ErrConfiguration, weekday, hours.End, hours.Start)
	}

	return Window{Start: start, End: end}, true, nil
}

// OnDate combines the calendar date of date with an "HH:MM" time of day.
func OnDate(date time.Time, timeOfDay string) (time.Time, error) {
	t, err := time.Parse(TimeOfDayLayout, timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", timeOfDay, err)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
