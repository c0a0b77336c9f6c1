// Package calendar talks to the tenant's job calendar. The rest of the
// system only sees the Service interface, so tests swap in a Fake and the
// scheduling engine stays transport-agnostic.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the calendar backend cannot be reached or
// answers with a server error. Callers degrade to manual follow-up rather
// than guessing at availability.
var ErrUnavailable = errors.New("calendar: backend unavailable")

// BusyInterval is an occupied range on the calendar, half-open [Start, End).
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// Event is a booked job on the calendar.
type Event struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendarId"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Service is the calendar surface the intake flow needs.
type Service interface {
	// ListBusy returns occupied intervals on the calendar between from and to.
	ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]BusyInterval, error)
	// InsertEvent books a job and returns the stored event with its ID set.
	InsertEvent(ctx context.Context, calendarID string, ev Event) (Event, error)
	// DeleteEvent removes a booked job.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	// SearchEvents returns events between from and to, most recent first.
	// A non-empty query narrows results to events whose text mentions it;
	// callers must not rely on the narrowing being exact.
	SearchEvents(ctx context.Context, calendarID string, from, to time.Time, query string) ([]Event, error)
}
