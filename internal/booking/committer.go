// Package booking commits an accepted slot: it writes the calendar event,
// parks a pending confirmation for the SMS channel, and tells both parties.
// Every side effect is best-effort; the caller's turn always gets a usable
// outcome even when the calendar is down.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/internal/calendar"
	"github.com/wrenchline/wrenchline/internal/confirm"
	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/observability/metrics"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

var bookingTracer = otel.Tracer("wrenchline/booking")

// Default retry policy for the calendar insert. Reads are never retried;
// only the write gets a bounded second chance.
const (
	defaultInsertAttempts = 3
	defaultRetryBaseWait  = 500 * time.Millisecond
)

// CustomerNotifier texts the customer from the tenant's number.
type CustomerNotifier interface {
	NotifyCustomer(ctx context.Context, tenantID, phone, text string)
}

// Request carries everything collected during the call.
type Request struct {
	CallID      string
	CallerPhone string
	Name        string
	Job         string
	Address     string
	AccessNote  string
	Start       time.Time
	End         time.Time
	// ReplaceEventID, when set, is a duplicate booking the caller chose to
	// update; it is deleted before the new event is inserted.
	ReplaceEventID string
}

// Result reports what actually happened.
type Result struct {
	// Booked is false when the calendar write failed and the owner must
	// finish the booking manually.
	Booked bool
	// EventID is the committed calendar event, empty when not Booked.
	EventID string
	// WhenText is the human-readable time used in prompts and texts.
	WhenText string
}

// Committer runs the commit pipeline.
type Committer struct {
	cal            calendar.Service
	store          confirm.Store
	customer       CustomerNotifier
	alerts         *alerts.Publisher
	metrics        *metrics.IntakeMetrics
	logger         *logging.Logger
	sleep          func(time.Duration)
	insertAttempts int
	retryBaseWait  time.Duration
}

// CommitterOption configures a Committer.
type CommitterOption func(*Committer)

// WithRetryPolicy overrides how many times the calendar insert is attempted
// and the initial backoff between attempts. Values below one keep the default.
func WithRetryPolicy(attempts int, baseWait time.Duration) CommitterOption {
	return func(c *Committer) {
		if attempts > 0 {
			c.insertAttempts = attempts
		}
		if baseWait > 0 {
			c.retryBaseWait = baseWait
		}
	}
}

// NewCommitter creates a Committer. The confirmation store and customer
// notifier may be nil; those side effects are then skipped.
func NewCommitter(cal calendar.Service, store confirm.Store, customer CustomerNotifier, pub *alerts.Publisher, m *metrics.IntakeMetrics, logger *logging.Logger, opts ...CommitterOption) *Committer {
	if cal == nil {
		panic("booking: calendar service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Committer{
		cal:            cal,
		store:          store,
		customer:       customer,
		alerts:         pub,
		metrics:        m,
		logger:         logger,
		sleep:          time.Sleep,
		insertAttempts: defaultInsertAttempts,
		retryBaseWait:  defaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit books the job. It never returns an error: a failed calendar write
// degrades to Result{Booked: false} plus an owner alert, and the voice side
// tells the caller the time will be confirmed manually.
func (c *Committer) Commit(ctx context.Context, cfg *tenant.Config, req Request) Result {
	ctx, span := bookingTracer.Start(ctx, "booking.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", cfg.TenantID),
		attribute.String("booking.start", req.Start.Format(time.RFC3339)),
		attribute.Bool("booking.replaces_duplicate", req.ReplaceEventID != ""),
	)

	whenText := FormatWhen(req.Start, cfg.Location())

	if req.ReplaceEventID != "" {
		if err := c.cal.DeleteEvent(ctx, cfg.CalendarID, req.ReplaceEventID); err != nil {
			// The old event survives alongside the new one; the owner can
			// reconcile from the alert.
			c.logger.Warn("failed to delete replaced booking",
				"tenant_id", cfg.TenantID,
				"event_id", req.ReplaceEventID,
				"error", err,
			)
			c.publish(ctx, cfg, req, alerts.KindManualAction,
				fmt.Sprintf("could not remove the old booking for %s, check the calendar for a double-up", req.Name))
		}
	}

	eventID, err := c.insertWithRetry(ctx, cfg, req)
	if err != nil {
		c.logger.Error("calendar insert failed after retries",
			"tenant_id", cfg.TenantID,
			"call_id", req.CallID,
			"error", err,
		)
		c.metrics.ObserveOutcome("manual_followup")
		c.publish(ctx, cfg, req, alerts.KindManualAction,
			fmt.Sprintf("booking for %s (%s) at %s could not be written to the calendar, book it manually", req.Name, req.Job, whenText))
		return Result{Booked: false, WhenText: whenText}
	}

	c.persistPending(ctx, cfg, req, eventID, whenText)
	c.notifyParties(ctx, cfg, req, whenText)

	c.metrics.ObserveOutcome("booked")
	c.logger.Info("booking committed",
		"tenant_id", cfg.TenantID,
		"call_id", req.CallID,
		"event_id", eventID,
		"start", req.Start.Format(time.RFC3339),
	)
	return Result{Booked: true, EventID: eventID, WhenText: whenText}
}

func (c *Committer) insertWithRetry(ctx context.Context, cfg *tenant.Config, req Request) (string, error) {
	ev := calendar.Event{
		Summary:     fmt.Sprintf("%s - %s", upperFirst(req.Job), req.Name),
		Description: BuildDescription(req),
		Start:       req.Start,
		End:         req.End,
	}

	var lastErr error
	wait := c.retryBaseWait
	for attempt := 1; attempt <= c.insertAttempts; attempt++ {
		created, err := c.cal.InsertEvent(ctx, cfg.CalendarID, ev)
		if err == nil {
			return created.ID, nil
		}
		lastErr = err
		if attempt < c.insertAttempts {
			c.logger.Warn("calendar insert failed, retrying",
				"tenant_id", cfg.TenantID,
				"attempt", attempt,
				"error", err,
			)
			c.sleep(wait)
			wait *= 2
		}
	}
	return "", lastErr
}

func (c *Committer) persistPending(ctx context.Context, cfg *tenant.Config, req Request, eventID, whenText string) {
	if c.store == nil {
		return
	}
	rec := &confirm.PendingConfirmation{
		Key:           confirm.MakeKey(cfg.TenantID, req.CallerPhone),
		TenantID:      cfg.TenantID,
		CustomerPhone: messaging.NormalizeE164(req.CallerPhone),
		Name:          req.Name,
		Job:           req.Job,
		Address:       req.Address,
		When:          whenText,
		Timezone:      cfg.Timezone,
		EventID:       eventID,
	}
	if err := c.store.Put(ctx, rec); err != nil {
		// The booking stands; only the SMS confirm loop is lost.
		c.logger.Warn("failed to persist pending confirmation",
			"tenant_id", cfg.TenantID,
			"key", rec.Key,
			"error", err,
		)
	}
}

func (c *Committer) notifyParties(ctx context.Context, cfg *tenant.Config, req Request, whenText string) {
	c.publish(ctx, cfg, req, alerts.KindBooked,
		fmt.Sprintf("%s booked %s at %s for %s, awaiting SMS confirm", req.Name, req.Job, req.Address, whenText))

	if c.customer != nil {
		c.customer.NotifyCustomer(ctx, cfg.TenantID, req.CallerPhone,
			fmt.Sprintf("Hi %s, your %s job at %s is pencilled in for %s. Reply Y to confirm or N to pick another time.",
				firstWord(req.Name), req.Job, req.Address, whenText))
	}
}

func (c *Committer) publish(ctx context.Context, cfg *tenant.Config, req Request, kind alerts.Kind, msg string) {
	if msg == "" {
		return
	}
	c.alerts.Publish(ctx, alerts.Alert{
		TenantID:    cfg.TenantID,
		Kind:        kind,
		CallerPhone: messaging.NormalizeE164(req.CallerPhone),
		Message:     msg,
	})
}

// BuildDescription renders the event body the duplicate detector reads back.
func BuildDescription(req Request) string {
	lines := []string{
		"Customer: " + req.Name,
		"Phone: " + messaging.NormalizeE164(req.CallerPhone),
		"Address: " + req.Address,
		"Job: " + req.Job,
	}
	if req.AccessNote != "" {
		lines = append(lines, "Access: "+req.AccessNote)
	}
	return strings.Join(lines, "\n")
}

// FormatWhen renders an instant the way it is spoken and texted.
func FormatWhen(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return local.Format("Monday 2 January at 3:04pm")
}

func upperFirst(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstWord(s string) string {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
