package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ggoodman/mcp-gateway/integration"
)

// Calendar is an in-memory calendar. Event ids are evt-1, evt-2 and so on.
type Calendar struct {
	set *Set

	mu     sync.Mutex
	events map[string]*integration.Event
	seq    int
}

func newCalendar(s *Set) *Calendar {
	return &Calendar{set: s, events: make(map[string]*integration.Event)}
}

// Seed stores an event as-is.
func (c *Calendar) Seed(ev integration.Event) {
	c.mu.Lock()
	c.events[ev.ID] = &ev
	c.mu.Unlock()
}

type boundCalendar struct {
	c     *Calendar
	creds integration.CalendarCredentials
}

func (b *boundCalendar) GetEvent(ctx context.Context, id string) (*integration.Event, error) {
	b.c.set.record(b.creds, "GetEvent", id)
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	ev, ok := b.c.events[id]
	if !ok {
		return nil, integration.NotFound(integration.Calendar, id)
	}
	cp := *ev
	return &cp, nil
}

func (b *boundCalendar) ListEvents(ctx context.Context) ([]integration.Event, error) {
	b.c.set.record(b.creds, "ListEvents", "")
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	out := make([]integration.Event, 0, len(b.c.events))
	for _, ev := range b.c.events {
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (b *boundCalendar) CreateEvent(ctx context.Context, d integration.EventDraft) (*integration.Event, error) {
	b.c.set.record(b.creds, "CreateEvent", d.Summary)
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	b.c.seq++
	ev := &integration.Event{
		ID:          fmt.Sprintf("evt-%d", b.c.seq),
		Summary:     d.Summary,
		Description: d.Description,
		Start:       d.Start,
		End:         d.End,
		Attendees:   append([]string(nil), d.Attendees...),
		Status:      "confirmed",
	}
	b.c.events[ev.ID] = ev
	cp := *ev
	return &cp, nil
}
