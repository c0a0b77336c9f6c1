package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wrenchline/wrenchline/pkg/logging"
)

// Kind classifies an alert for the dispatcher and the dashboard rollup.
type Kind string

const (
	KindMissedRevenue Kind = "missed_revenue"
	KindQuietCall     Kind = "quiet_call"
	KindSystemError   Kind = "system_error"
	KindQuoteLead     Kind = "quote_lead"
	KindReschedule    Kind = "reschedule_request"
	KindManualAction  Kind = "manual_action"
	KindBooked        Kind = "booking_created"
	KindConfirmed     Kind = "booking_confirmed"
	KindDeclined      Kind = "booking_declined"
)

// Alert is the payload carried on the queue.
type Alert struct {
	TenantID    string    `json:"tenantId"`
	Kind        Kind      `json:"kind"`
	CallerPhone string    `json:"callerPhone,omitempty"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher enqueues alerts. Failures are logged and swallowed; losing an
// alert must never fail the caller's turn.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
	now    func() time.Time
}

// NewPublisher creates a Publisher. A nil queue yields a Publisher whose
// Publish is a logged no-op, so callers need no nil checks when alerting is
// unconfigured.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	return &Publisher{queue: queue, logger: logger, now: time.Now}
}

// Publish enqueues the alert, stamping OccurredAt if unset.
func (p *Publisher) Publish(ctx context.Context, a Alert) {
	if p == nil || p.queue == nil {
		return
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = p.now()
	}

	body, err := json.Marshal(a)
	if err != nil {
		p.logger.Error("failed to encode alert", "kind", a.Kind, "error", err)
		return
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		p.logger.Error("failed to enqueue alert",
			"kind", a.Kind,
			"tenant_id", a.TenantID,
			"error", err,
		)
	}
}

// decode parses a queued message body back into an Alert.
func decode(body string) (Alert, error) {
	var a Alert
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return Alert{}, fmt.Errorf("alerts: decode message: %w", err)
	}
	return a, nil
}
