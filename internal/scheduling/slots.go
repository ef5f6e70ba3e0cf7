package scheduling

import (
	"fmt"
	"iter"
	"time"
)

// Minutes converts a stored minute count to a duration.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// GenerateSlots returns the candidate start times of a window: Start, then
// every interval after it, while the candidate plus duration still ends at or
// before End. Each range over the sequence starts again from window.Start.
//
// Slots are offered by wall-clock label, so a time of day that occurs twice
// when clocks fall back is yielded once, at its first occurrence. That is the
// instant OnDate resolves the label to.
func GenerateSlots(window Window, interval, duration time.Duration) (iter.Seq[time.Time], error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: slot interval must be positive, got %s", ErrConfiguration, interval)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: treatment duration must be positive, got %s", ErrConfiguration, duration)
	}

	return func(yield func(time.Time) bool) {
		last := -1
		for c := window.Start; !c.Add(duration).After(window.End); c = c.Add(interval) {
			h, m, _ := c.Clock()
			label := h*60 + m
			if label <= last {
				continue
			}
			last = label
			if !yield(c) {
				return
			}
		}
	}, nil
}
