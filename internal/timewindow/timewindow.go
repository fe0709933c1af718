// Package timewindow rounds timestamps to a fixed minute resolution.
//
// The scheduler evaluates schedules once per window: RoundDown gives the start
// of the current window and RoundUp gives the rendezvous point where due
// actions are executed.
package timewindow

import (
	"errors"
	"fmt"
	"time"
)

// DefaultResolution is the window size in minutes used when none is configured.
const DefaultResolution = 2

var ErrInvalidResolution = errors.New("invalid resolution")

// ValidateResolution reports whether r minutes evenly tile an hour.
func ValidateResolution(r int) error {
	if r < 1 || r > 60 {
		return fmt.Errorf("%w: %d must be between 1 and 60", ErrInvalidResolution, r)
	}
	if 60%r != 0 {
		return fmt.Errorf("%w: %d must be a factor of 60", ErrInvalidResolution, r)
	}
	return nil
}

// Duration returns r minutes as a time.Duration.
func Duration(r int) time.Duration { return time.Duration(r) * time.Minute }

// RoundDown floors t's minute to a multiple of r and zeroes seconds.
// An aligned t only loses its seconds.
func RoundDown(t time.Time, r int) time.Time {
	if r <= 0 {
		r = 1
	}
	m := t.Minute()
	delta := m - (m/r)*r
	out := t.Add(-time.Duration(delta) * time.Minute)
	return truncateSeconds(out)
}

// RoundUp advances t to the next multiple of r strictly after its minute.
// An already aligned t moves a full step; this is a rendezvous, not a ceiling.
func RoundUp(t time.Time, r int) time.Time {
	if r <= 0 {
		r = 1
	}
	m := t.Minute()
	delta := ((m/r)+1)*r - m
	out := t.Add(time.Duration(delta) * time.Minute)
	return truncateSeconds(out)
}

// UntilNext returns how long to wait from t until RoundUp(t, r).
func UntilNext(t time.Time, r int) time.Duration {
	return RoundUp(t, r).Sub(t)
}

// truncateSeconds drops seconds without going through time.Date, which would
// re-resolve the wall clock and can pick the other offset inside a DST fold.
func truncateSeconds(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Second())*time.Second - time.Duration(t.Nanosecond()))
}
