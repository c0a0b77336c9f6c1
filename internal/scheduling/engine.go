// Package scheduling proposes bookable slots against the tenant calendar and
// detects likely duplicate bookings.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/wrenchline/wrenchline/internal/calendar"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

const (
	// searchHorizon caps how far ahead the engine will look for free slots.
	searchHorizon = 14 * 24 * time.Hour
	// conflictStep is how far the cursor advances past a busy interval.
	conflictStep = 15 * time.Minute
	// openMargin pads the search start when the business is open right
	// now. A slot starting this instant is stale before the caller can
	// say yes to it.
	openMargin = 5 * time.Minute
)

// Slot is a proposable booking window, half-open [Start, End).
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Engine walks the tenant's calendar looking for free, in-hours slots.
type Engine struct {
	cal    calendar.Service
	cfg    *tenant.Config
	logger *logging.Logger
	now    func() time.Time
}

// NewEngine creates a scheduling engine for one tenant.
func NewEngine(cal calendar.Service, cfg *tenant.Config, logger *logging.Logger) *Engine {
	if cal == nil {
		panic("scheduling: calendar service is required")
	}
	if cfg == nil {
		panic("scheduling: tenant config is required")
	}
	return &Engine{cal: cal, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the engine's clock. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// NextAvailableSlots returns up to count free slots at or after desiredStart.
// The cursor starts at desiredStart (clamped to now, plus a short lead time
// when the business is open at the moment of the call, and to business
// hours), skips busy intervals in 15 minute steps, and jumps to the next opening
// time whenever it runs past close. The search gives up at the horizon, so a
// fully booked fortnight yields fewer slots, possibly none.
func (e *Engine) NextAvailableSlots(ctx context.Context, desiredStart time.Time, count int) ([]Slot, error) {
	if count <= 0 {
		return nil, nil
	}

	loc := e.cfg.Location()
	now := e.now().In(loc)
	horizon := now.Add(searchHorizon)

	cursor := desiredStart.In(loc)
	if !cursor.After(now) {
		cursor = now
		if e.cfg.IsOpenAt(now) {
			cursor = cursor.Add(openMargin)
		}
	}
	cursor = cursor.Round(time.Minute)

	busy, err := e.cal.ListBusy(ctx, e.cfg.CalendarID, now, horizon)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list busy: %w", err)
	}

	job := e.cfg.JobDuration()
	buffer := e.cfg.Buffer()
	keepHours := e.cfg.Hours.HasAnyHours()
	var slots []Slot

	for cursor.Before(horizon) && len(slots) < count {
		if keepHours {
			cursor = e.cfg.NextOpenTime(cursor)

			// The whole job must finish before close.
			_, closeAt, ok := e.cfg.OpenAndCloseOn(cursor)
			if !ok || cursor.Add(job).After(closeAt) {
				cursor = startOfNextDay(cursor)
				continue
			}
		}

		end := cursor.Add(job)
		if overlapsAny(busy, cursor, end.Add(buffer)) {
			cursor = cursor.Add(conflictStep)
			continue
		}

		slots = append(slots, Slot{Start: cursor, End: end})
		cursor = end.Add(buffer)
	}

	if e.logger != nil {
		e.logger.Debug("slot search complete",
			"tenant_id", e.cfg.TenantID,
			"desired", desiredStart.Format(time.RFC3339),
			"found", len(slots),
		)
	}
	return slots, nil
}

// MatchesDesired reports whether a proposed slot starts close enough to the
// caller's asked-for time to be treated as the same time. Callers hearing a
// match get a plain confirmation instead of a list of alternatives.
func (e *Engine) MatchesDesired(desired time.Time, s Slot) bool {
	diff := s.Start.Sub(desired)
	if diff < 0 {
		diff = -diff
	}
	return diff <= e.cfg.SlotTolerance()
}

func overlapsAny(busy []calendar.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func startOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
