package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wrenchline/wrenchline/pkg/logging"
)

// receiveBackoff is how long a worker waits after a failed Receive before
// polling again, so a broken queue does not spin the loop.
const receiveBackoff = time.Second

// OwnerNotifier delivers an alert to the tenant's owner.
type OwnerNotifier interface {
	NotifyOwner(ctx context.Context, tenantID, text string) error
}

// Dispatcher drains the alert queue and delivers each alert to the owner.
type Dispatcher struct {
	queue    Queue
	notifier OwnerNotifier
	logger   *logging.Logger
	workers  int
	waitSecs int
	backoff  time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(queue Queue, notifier OwnerNotifier, logger *logging.Logger, workers, waitSecs int) *Dispatcher {
	if queue == nil {
		panic("alerts: queue is required")
	}
	if notifier == nil {
		panic("alerts: notifier is required")
	}
	if workers <= 0 {
		workers = 1
	}
	if waitSecs <= 0 {
		waitSecs = 10
	}
	return &Dispatcher{
		queue:    queue,
		notifier: notifier,
		logger:   logger,
		workers:  workers,
		waitSecs: waitSecs,
		backoff:  receiveBackoff,
	}
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		messages, err := d.queue.Receive(ctx, 10, d.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			d.logger.Error("alert receive failed", "worker", worker, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.backoff):
			}
			continue
		}

		for _, msg := range messages {
			d.handle(ctx, msg)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg Message) {
	alert, err := decode(msg.Body)
	if err != nil {
		// A malformed message would loop forever; drop it.
		d.logger.Error("dropping undecodable alert", "message_id", msg.ID, "error", err)
		_ = d.queue.Delete(ctx, msg.ReceiptHandle)
		return
	}

	if err := d.notifier.NotifyOwner(ctx, alert.TenantID, FormatOwnerText(alert)); err != nil {
		// Leave the message on the queue; SQS redelivers after the
		// visibility timeout.
		d.logger.Warn("alert delivery failed, will retry",
			"tenant_id", alert.TenantID,
			"kind", alert.Kind,
			"error", err,
		)
		return
	}

	if err := d.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		d.logger.Warn("failed to delete delivered alert", "message_id", msg.ID, "error", err)
	}
}

// FormatOwnerText renders an alert as the SMS/email body the owner sees.
func FormatOwnerText(a Alert) string {
	prefix := map[Kind]string{
		KindMissedRevenue: "Missed job",
		KindQuietCall:     "Quiet call",
		KindSystemError:   "System error",
		KindQuoteLead:     "Quote request",
		KindReschedule:    "Reschedule request",
		KindManualAction:  "Action needed",
		KindBooked:        "New booking",
		KindConfirmed:     "Booking confirmed",
		KindDeclined:      "Booking declined",
	}[a.Kind]
	if prefix == "" {
		prefix = "Alert"
	}
	if a.CallerPhone != "" {
		return fmt.Sprintf("%s: %s (caller %s)", prefix, a.Message, a.CallerPhone)
	}
	return fmt.Sprintf("%s: %s", prefix, a.Message)
}
