package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Service used by tests and local development. It is
// safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	nextID int
	events map[string][]Event // calendarID -> events

	// InsertErrs is consumed one per InsertEvent call, letting tests script
	// transient failures ahead of a success.
	InsertErrs []error
	// ListErr, when set, fails every ListBusy call.
	ListErr error
}

// NewFake creates an empty in-memory calendar.
func NewFake() *Fake {
	return &Fake{events: make(map[string][]Event)}
}

var _ Service = (*Fake)(nil)

// Seed adds a busy event without going through InsertEvent's error script.
func (f *Fake) Seed(calendarID string, start, end time.Time, summary string) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ev := Event{
		ID:         fmt.Sprintf("evt-%d", f.nextID),
		CalendarID: calendarID,
		Summary:    summary,
		Start:      start,
		End:        end,
	}
	f.events[calendarID] = append(f.events[calendarID], ev)
	return ev
}

func (f *Fake) ListBusy(_ context.Context, calendarID string, from, to time.Time) ([]BusyInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var busy []BusyInterval
	for _, ev := range f.events[calendarID] {
		if from.Before(ev.End) && ev.Start.Before(to) {
			busy = append(busy, BusyInterval{Start: ev.Start, End: ev.End})
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

func (f *Fake) InsertEvent(_ context.Context, calendarID string, ev Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.InsertErrs) > 0 {
		err := f.InsertErrs[0]
		f.InsertErrs = f.InsertErrs[1:]
		if err != nil {
			return Event{}, err
		}
	}
	f.nextID++
	ev.ID = fmt.Sprintf("evt-%d", f.nextID)
	ev.CalendarID = calendarID
	f.events[calendarID] = append(f.events[calendarID], ev)
	return ev, nil
}

func (f *Fake) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := f.events[calendarID]
	for i, ev := range evs {
		if ev.ID == eventID {
			f.events[calendarID] = append(evs[:i], evs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("calendar: event %s not found", eventID)
}

func (f *Fake) SearchEvents(_ context.Context, calendarID string, from, to time.Time, query string) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := foldText(query)
	var out []Event
	for _, ev := range f.events[calendarID] {
		if !from.Before(ev.End) || !ev.Start.Before(to) {
			continue
		}
		if q != "" && !strings.Contains(foldText(ev.Summary+" "+ev.Description), q) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return out, nil
}

// foldText lowercases and strips punctuation so the fake's query matching
// behaves like a forgiving backend search.
func foldText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SetDescription updates a seeded event's description.
func (f *Fake) SetDescription(calendarID, eventID, desc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := f.events[calendarID]
	for i := range evs {
		if evs[i].ID == eventID {
			evs[i].Description = desc
			return
		}
	}
}

// Events returns a copy of the stored events for assertions.
func (f *Fake) Events(calendarID string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events[calendarID]...)
}
