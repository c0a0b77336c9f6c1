// Package confirm holds tentative bookings awaiting a Y/N text reply. It is
// the only state shared between the voice and SMS channels: the voice side
// writes a record keyed by tenant and caller phone, and a later inbound SMS
// from that phone resolves it without any call identifier in common.
package confirm

import (
	"context"
	"time"

	"github.com/wrenchline/wrenchline/internal/messaging"
)

// TTL bounds how long a pending confirmation stays resolvable. A reply that
// arrives later gets the generic fallback instead of confirming a stale
// booking.
const TTL = 48 * time.Hour

// PendingConfirmation is one tentative booking awaiting acknowledgment.
type PendingConfirmation struct {
	Key           string `dynamodbav:"confirmationKey" json:"confirmationKey"`
	TenantID      string `dynamodbav:"tenantId" json:"tenantId"`
	CustomerPhone string `dynamodbav:"customerPhone" json:"customerPhone"`
	Name          string `dynamodbav:"name" json:"name"`
	Job           string `dynamodbav:"job" json:"job"`
	Address       string `dynamodbav:"address" json:"address"`
	When          string `dynamodbav:"when" json:"when"`
	Timezone      string `dynamodbav:"timezone" json:"timezone"`
	EventID       string `dynamodbav:"eventId,omitempty" json:"eventId,omitempty"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt     int64  `dynamodbav:"expiresAt" json:"-"`
}

// Store is the pending-confirmation surface. Exactly one implementation is
// selected at startup; the durable and in-memory backends are never mixed.
type Store interface {
	// Put writes the record, replacing any prior one for the same key
	// (last booking wins).
	Put(ctx context.Context, rec *PendingConfirmation) error
	// Get returns the live record for the key, or nil when none exists.
	Get(ctx context.Context, key string) (*PendingConfirmation, error)
	// Delete removes the record. Deleting an absent key is a no-op, so a
	// late voice-side write racing an SMS-side resolve never errors.
	Delete(ctx context.Context, key string) error
}

// MakeKey builds the deterministic (tenant, phone) key both channels use.
func MakeKey(tenantID, phone string) string {
	return tenantID + "#" + messaging.NormalizeE164(phone)
}
