// Package intent maps a caller's opening utterance to a call intent.
package intent

import "strings"

// Intent is the coarse purpose of an inbound call.
type Intent string

const (
	NewBooking       Intent = "NEW_BOOKING"
	Emergency        Intent = "EMERGENCY"
	Quote            Intent = "QUOTE"
	ExistingCustomer Intent = "EXISTING_CUSTOMER"
	CancelReschedule Intent = "CANCEL_RESCHEDULE"
)

// Rule binds an intent to the keywords that trigger it.
type Rule struct {
	Intent   Intent
	Keywords []string
}

// Table is the priority-ordered keyword table, version tagged so changes are
// auditable. Earlier rules outrank later ones: a message mentioning both
// "leak" and "reschedule" is a reschedule, not an emergency. That ordering is
// business policy and must not be re-sorted.
var Table = struct {
	Version string
	Rules   []Rule
}{
	Version: "2026-03-01",
	Rules: []Rule{
		{
			Intent: CancelReschedule,
			Keywords: []string{
				"cancel", "cancellation", "reschedule", "rebook", "move my",
				"change my appointment", "change the appointment", "change my booking",
				"push back", "postpone", "different day",
			},
		},
		{
			Intent: Emergency,
			Keywords: []string{
				"emergency", "urgent", "burst", "flooding", "flooded", "gas leak",
				"no hot water", "no power", "sparking", "sewage", "overflowing",
				"right now", "asap", "leaking everywhere",
			},
		},
		{
			Intent: Quote,
			Keywords: []string{
				"quote", "quotation", "estimate", "ballpark", "how much",
				"price", "pricing", "cost",
			},
		},
		{
			Intent: ExistingCustomer,
			Keywords: []string{
				"you came out", "came out before", "last time", "you guys did",
				"previous job", "existing customer", "been before", "worked on my",
				"you fixed", "follow up", "follow-up",
			},
		},
	},
}

// Classify maps free text to an intent. Pure and deterministic: the first
// rule in the table with any keyword present wins; no keywords at all yields
// NewBooking.
func Classify(text string) Intent {
	msg := strings.ToLower(text)
	for _, rule := range Table.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(msg, kw) {
				return rule.Intent
			}
		}
	}
	return NewBooking
}
