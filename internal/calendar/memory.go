package calendar

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/dental-voice-scheduler/internal/schedule"
)

// MemoryGateway is an in-process calendar for local development and tests.
// Overlap follows the Google Calendar list semantics: an event is returned
// when it ends after the window starts and starts before the window ends.
type MemoryGateway struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryGateway returns a calendar holding the given events.
func NewMemoryGateway(seed ...Event) *MemoryGateway {
	g := &MemoryGateway{}
	for _, ev := range seed {
		g.add(ev)
	}
	return g
}

var _ Gateway = (*MemoryGateway)(nil)

// ListEvents returns events overlapping w ordered by start.
func (g *MemoryGateway) ListEvents(ctx context.Context, w schedule.Window) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Event
	for _, ev := range g.events {
		if w.Overlaps(ev.Start, ev.End) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// InsertEvent stores ev and returns it with a generated id.
func (g *MemoryGateway) InsertEvent(ctx context.Context, ev NewEvent) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	stored := Event{
		ID:      uuid.NewString(),
		Summary: ev.Summary,
		Start:   ev.Window.Start,
		End:     ev.Window.End,
	}
	g.mu.Lock()
	g.add(stored)
	g.mu.Unlock()
	return stored, nil
}

// Events returns a copy of every stored event.
func (g *MemoryGateway) Events() []Event {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Event(nil), g.events...)
}

func (g *MemoryGateway) add(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	g.events = append(g.events, ev)
	sort.SliceStable(g.events, func(i, j int) bool {
		return g.events[i].Start.Before(g.events[j].Start)
	})
}
