// Package schedule derives the concrete time windows the scheduler queries
// and books from a resolved date.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-voice-scheduler/internal/dates"
)

// ErrInvalidTime is returned when a time of day is not a 24-hour HH:MM value.
var ErrInvalidTime = errors.New("schedule: invalid time of day")

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String formats c as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// ParseClock parses a 24-hour HH:MM value. A single-digit hour ("9:30") is
// accepted; minutes must have two digits.
func ParseClock(raw string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Hours is the fixed scheduling configuration of the clinic.
type Hours struct {
	Open     Clock
	Close    Clock
	Duration time.Duration
	Location *time.Location
}

// DefaultHours returns 09:00-18:00 with one-hour appointments in loc.
func DefaultHours(loc *time.Location) Hours {
	if loc == nil {
		loc = time.UTC
	}
	return Hours{
		Open:     Clock{Hour: 9},
		Close:    Clock{Hour: 18},
		Duration: time.Hour,
		Location: loc,
	}
}

// Validate reports whether the hours describe a usable day.
func (h Hours) Validate() error {
	if h.Location == nil {
		return errors.New("schedule: location required")
	}
	if h.Close.minutes() <= h.Open.minutes() {
		return fmt.Errorf("schedule: close %s must be after open %s", h.Close, h.Open)
	}
	if h.Duration <= 0 {
		return errors.New("schedule: appointment duration must be positive")
	}
	return nil
}

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether w and the interval [start, end) share any instant.
// Windows that only touch at an endpoint do not overlap.
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

// AvailabilityWindow returns business hours on d.
func (h Hours) AvailabilityWindow(d dates.Date) Window {
	return Window{
		Start: d.At(h.Open.Hour, h.Open.Minute, h.Location),
		End:   d.At(h.Close.Hour, h.Close.Minute, h.Location),
	}
}

// AppointmentWindow returns the appointment interval starting at rawTime on d.
// The same window is used for the conflict check and the booking itself.
func (h Hours) AppointmentWindow(d dates.Date, rawTime string) (Window, error) {
	clock, err := ParseClock(rawTime)
	if err != nil {
		return Window{}, err
	}
	start := d.At(clock.Hour, clock.Minute, h.Location)
	return Window{Start: start, End: start.Add(h.Duration)}, nil
}
