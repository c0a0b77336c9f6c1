// Package dialog runs the per-call conversation: a fixed step sequence that
// collects job details, negotiates a time against the calendar, and commits
// the booking.
package dialog

import (
	"time"

	"github.com/wrenchline/wrenchline/internal/intent"
	"github.com/wrenchline/wrenchline/internal/scheduling"
)

// Step is the input the session is currently waiting for.
type Step string

const (
	StepIntent   Step = "intent"
	StepJob      Step = "job"
	StepAddress  Step = "address"
	StepName     Step = "name"
	StepAccess   Step = "access"
	StepTime     Step = "time"
	StepPickSlot Step = "pickSlot"
	StepConfirm  Step = "confirm"
)

// DuplicateRef points at a prior booking the duplicate detector matched.
type DuplicateRef struct {
	EventID string `json:"event_id"`
	Summary string `json:"summary"`
	When    string `json:"when"`
}

// CallSession is the mutable state of one in-progress call.
type CallSession struct {
	CallID      string `json:"call_id"`
	TenantID    string `json:"tenant_id"`
	CallerPhone string `json:"caller_phone"`

	Step   Step          `json:"step"`
	Intent intent.Intent `json:"intent,omitempty"`

	// Captured fields, written once per step and overwritten only when a
	// "no" path re-enters the step.
	Job        string `json:"job,omitempty"`
	Address    string `json:"address,omitempty"`
	Name       string `json:"name,omitempty"`
	AccessNote string `json:"access_note,omitempty"`
	SpokenTime string `json:"spoken_time,omitempty"`

	// ProposedSlots are the alternatives offered when the asked-for time
	// was unavailable; consumed by the pickSlot step.
	ProposedSlots []scheduling.Slot `json:"proposed_slots,omitempty"`
	// BookedStart is set once a slot is accepted, before the confirm step.
	BookedStart *time.Time `json:"booked_start,omitempty"`
	// Duplicate drives the three-way confirm/update/reject prompt.
	Duplicate *DuplicateRef `json:"duplicate,omitempty"`

	// Escalation counters, monotonically increasing.
	RejectCounts   map[string]int `json:"reject_counts,omitempty"`
	SilentTries    int            `json:"silent_tries"`
	QuietAlertSent bool           `json:"quiet_alert_sent,omitempty"`

	// LastPrompt is replayed verbatim after a rejected answer.
	LastPrompt string `json:"last_prompt,omitempty"`

	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewCallSession creates a session waiting for the caller's first utterance.
func NewCallSession(callID, tenantID, callerPhone string, now time.Time) *CallSession {
	return &CallSession{
		CallID:         callID,
		TenantID:       tenantID,
		CallerPhone:    callerPhone,
		Step:           StepIntent,
		RejectCounts:   make(map[string]int),
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// Reject bumps the counter for a field and returns the new count.
func (s *CallSession) Reject(field string) int {
	if s.RejectCounts == nil {
		s.RejectCounts = make(map[string]int)
	}
	s.RejectCounts[field]++
	return s.RejectCounts[field]
}

// ClearProposal drops held slot state when the caller backs out at confirm.
func (s *CallSession) ClearProposal() {
	s.ProposedSlots = nil
	s.BookedStart = nil
	s.Duplicate = nil
	s.SpokenTime = ""
}
