// Package calendar is the boundary to the calendar that stores appointments.
package calendar

import (
	"context"
	"time"

	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
)

// Event is an entry on the calendar.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	// AllDay marks date-only events; Start and End are then midnights.
	AllDay bool
}

// NewEvent describes an event to create.
type NewEvent struct {
	Summary     string
	Location    string
	Description string
	Window      schedule.Window
	// TimeZone is the IANA id written on both start and end.
	TimeZone string
}

// Gateway lists and creates calendar events. Implementations provide no
// locking; callers serialize check-then-insert themselves.
type Gateway interface {
	// ListEvents returns events overlapping w, ordered by start time.
	ListEvents(ctx context.Context, w schedule.Window) ([]Event, error)
	// InsertEvent creates an event and returns it as stored.
	InsertEvent(ctx context.Context, ev NewEvent) (Event, error)
}
