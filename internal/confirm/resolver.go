package confirm

import (
	"context"
	"fmt"
	"strings"

	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// Reply texts returned to the customer's SMS.
const (
	replyFallback = "Thanks for your message. We'll get back to you shortly."
	replyDeclined = "No worries, we'll be in touch shortly to find a time that suits."
)

var yesWords = map[string]bool{
	"y": true, "yes": true, "yeah": true, "yep": true, "yup": true,
	"confirm": true, "confirmed": true, "ok": true, "okay": true,
}

var noWords = map[string]bool{
	"n": true, "no": true, "nope": true, "nah": true,
	"cancel": true, "reschedule": true, "change": true,
}

// Resolver turns an inbound SMS reply into an outcome for the pending
// confirmation from the same (tenant, phone).
type Resolver struct {
	store  Store
	alerts *alerts.Publisher
	logger *logging.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store Store, pub *alerts.Publisher, logger *logging.Logger) *Resolver {
	if store == nil {
		panic("confirm: store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{store: store, alerts: pub, logger: logger}
}

// HandleReply resolves one inbound SMS and returns the text to send back.
// A yes deletes the record and tells the owner the booking stands; a no
// deletes it and asks the owner to rebook; anything else re-prompts without
// touching state. With no live record the reply gets the generic fallback.
func (r *Resolver) HandleReply(ctx context.Context, tenantID, fromPhone, body string) (string, error) {
	key := MakeKey(tenantID, fromPhone)
	rec, err := r.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("confirm: lookup pending confirmation: %w", err)
	}
	if rec == nil {
		return replyFallback, nil
	}

	switch classifyReply(body) {
	case replyYes:
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Warn("failed to delete confirmed record", "key", key, "error", err)
		}
		r.alerts.Publish(ctx, alerts.Alert{
			TenantID:    tenantID,
			Kind:        alerts.KindConfirmed,
			CallerPhone: rec.CustomerPhone,
			Message:     fmt.Sprintf("%s confirmed %s at %s for %s", rec.Name, rec.Job, rec.Address, rec.When),
		})
		r.logger.Info("booking confirmed by sms", "tenant_id", tenantID, "key", key)
		return fmt.Sprintf("Thanks %s, you're locked in for %s. See you then!", firstName(rec.Name), rec.When), nil

	case replyNo:
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Warn("failed to delete declined record", "key", key, "error", err)
		}
		r.alerts.Publish(ctx, alerts.Alert{
			TenantID:    tenantID,
			Kind:        alerts.KindDeclined,
			CallerPhone: rec.CustomerPhone,
			Message:     fmt.Sprintf("%s declined %s for %s, please rebook", rec.Name, rec.When, rec.Job),
		})
		r.logger.Info("booking declined by sms", "tenant_id", tenantID, "key", key)
		return replyDeclined, nil

	default:
		return fmt.Sprintf("Just reply Y to confirm your booking for %s, or N to pick another time.", rec.When), nil
	}
}

type replyKind int

const (
	replyOther replyKind = iota
	replyYes
	replyNo
)

func classifyReply(body string) replyKind {
	cleaned := strings.ToLower(strings.TrimSpace(body))
	cleaned = strings.Trim(cleaned, ".!?,")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return replyOther
	}
	first := fields[0]
	switch {
	case yesWords[first]:
		return replyYes
	case noWords[first]:
		return replyNo
	case strings.Contains(cleaned, "reschedule") || strings.Contains(cleaned, "cancel"):
		return replyNo
	default:
		return replyOther
	}
}

func firstName(name string) string {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return "mate"
	}
	return fields[0]
}
