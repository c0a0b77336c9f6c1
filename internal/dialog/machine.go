package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/internal/booking"
	"github.com/wrenchline/wrenchline/internal/calendar"
	"github.com/wrenchline/wrenchline/internal/intent"
	"github.com/wrenchline/wrenchline/internal/messaging"
	"github.com/wrenchline/wrenchline/internal/observability/metrics"
	"github.com/wrenchline/wrenchline/internal/scheduling"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/internal/timeparse"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

// confidenceFloor rejects very short transcripts the recognizer itself was
// unsure about. Zero confidence means the channel didn't report one.
const confidenceFloor = 0.45

// Booker commits an accepted booking.
type Booker interface {
	Commit(ctx context.Context, cfg *tenant.Config, req booking.Request) booking.Result
}

// TurnInput is one inbound voice turn.
type TurnInput struct {
	CallID      string
	CallerPhone string
	Transcript  string
	Confidence  float64
}

// TurnResult is what the voice channel speaks back.
type TurnResult struct {
	// Message is the next prompt, or the terminal goodbye when Done.
	Message string
	// Done means the call ends after this message.
	Done bool
	// Outcome is set on terminal turns so the call can be logged.
	Outcome string
	// Details carries what was captured before the call ended. Nil until
	// Done.
	Details *CallDetails
}

// CallDetails is the snapshot of a finished call.
type CallDetails struct {
	Intent      string
	Name        string
	Job         string
	Address     string
	BookedStart *time.Time
	EventID     string
}

func detailsFrom(sess *CallSession) *CallDetails {
	return &CallDetails{
		Intent:      string(sess.Intent),
		Name:        sess.Name,
		Job:         sess.Job,
		Address:     sess.Address,
		BookedStart: sess.BookedStart,
	}
}

// Machine drives the per-call conversation.
type Machine struct {
	sessions SessionStore
	cal      calendar.Service
	booker   Booker
	alerts   *alerts.Publisher
	metrics  *metrics.IntakeMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewMachine creates a Machine.
func NewMachine(sessions SessionStore, cal calendar.Service, booker Booker, pub *alerts.Publisher, m *metrics.IntakeMetrics, logger *logging.Logger) *Machine {
	if sessions == nil {
		panic("dialog: session store is required")
	}
	if cal == nil {
		panic("dialog: calendar service is required")
	}
	if booker == nil {
		panic("dialog: booker is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		sessions: sessions,
		cal:      cal,
		booker:   booker,
		alerts:   pub,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the machine's clock. Used by tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// HandleTurn processes one caller utterance and returns the response. It
// never panics out: an unexpected failure mid-turn becomes an apology plus
// owner alerts, and the session is discarded.
func (m *Machine) HandleTurn(ctx context.Context, cfg *tenant.Config, in TurnInput) (result TurnResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("turn handler panicked",
				"call_id", in.CallID,
				"tenant_id", cfg.TenantID,
				"panic", fmt.Sprintf("%v", r),
			)
			m.metrics.ObserveOutcome("error")
			m.alerts.Publish(ctx, alerts.Alert{
				TenantID:    cfg.TenantID,
				Kind:        alerts.KindSystemError,
				CallerPhone: messaging.NormalizeE164(in.CallerPhone),
				Message:     fmt.Sprintf("turn handler failed mid-call (%v), caller needs a callback", r),
			})
			m.alerts.Publish(ctx, alerts.Alert{
				TenantID:    cfg.TenantID,
				Kind:        alerts.KindMissedRevenue,
				CallerPhone: messaging.NormalizeE164(in.CallerPhone),
				Message:     "call dropped by a system error before booking",
			})
			_ = m.sessions.Delete(ctx, in.CallID)
			result = TurnResult{Message: messageApology, Done: true, Outcome: "error", Details: &CallDetails{}}
		}
	}()

	sess, err := m.sessions.Get(ctx, in.CallID)
	if err != nil {
		// Losing the store mid-call is survivable; restart from a fresh
		// session rather than dropping the caller.
		m.logger.Error("session load failed, starting fresh", "call_id", in.CallID, "error", err)
		sess = nil
	}

	transcript := strings.TrimSpace(in.Transcript)

	if sess == nil {
		sess = NewCallSession(in.CallID, cfg.TenantID, in.CallerPhone, m.now())
		if transcript == "" {
			return m.reply(ctx, sess, promptGreeting(cfg))
		}
	}
	sess.LastActivityAt = m.now()

	if transcript == "" {
		return m.handleSilence(ctx, cfg, sess)
	}
	sess.SilentTries = 0

	if !validTranscript(sess.Step, transcript, in.Confidence) {
		return m.handleReject(ctx, cfg, sess)
	}

	switch sess.Step {
	case StepIntent:
		return m.stepIntent(ctx, cfg, sess, transcript)
	case StepJob:
		sess.Job = transcript
		sess.Step = StepAddress
		return m.reply(ctx, sess, promptAddress())
	case StepAddress:
		sess.Address = transcript
		sess.Step = StepName
		return m.reply(ctx, sess, promptName())
	case StepName:
		return m.stepName(ctx, cfg, sess, transcript)
	case StepAccess:
		return m.stepAccess(ctx, cfg, sess, transcript)
	case StepTime:
		return m.stepTime(ctx, cfg, sess, transcript)
	case StepPickSlot:
		return m.stepPickSlot(ctx, cfg, sess, transcript)
	case StepConfirm:
		return m.stepConfirm(ctx, cfg, sess, transcript)
	default:
		// Unknown step means corrupted state; restart the session.
		m.logger.Error("unknown session step", "call_id", sess.CallID, "step", sess.Step)
		_ = m.sessions.Delete(ctx, sess.CallID)
		fresh := NewCallSession(in.CallID, cfg.TenantID, in.CallerPhone, m.now())
		return m.reply(ctx, fresh, promptGreeting(cfg))
	}
}

func (m *Machine) stepIntent(ctx context.Context, cfg *tenant.Config, sess *CallSession, transcript string) TurnResult {
	sess.Intent = intent.Classify(transcript)
	m.logger.Info("intent classified",
		"call_id", sess.CallID,
		"tenant_id", cfg.TenantID,
		"intent", string(sess.Intent),
	)

	switch sess.Intent {
	case intent.Emergency:
		// The opening utterance already describes the problem; go straight
		// to the address.
		sess.Job = transcript
		sess.Step = StepAddress
		return m.reply(ctx, sess, promptEmergencyAddress())
	case intent.CancelReschedule:
		sess.Step = StepName
		return m.reply(ctx, sess, promptCancelName())
	default:
		sess.Step = StepJob
		return m.reply(ctx, sess, promptJob())
	}
}

func (m *Machine) stepName(ctx context.Context, cfg *tenant.Config, sess *CallSession, transcript string) TurnResult {
	sess.Name = transcript

	if sess.Intent == intent.CancelReschedule {
		m.alerts.Publish(ctx, alerts.Alert{
			TenantID:    cfg.TenantID,
			Kind:        alerts.KindReschedule,
			CallerPhone: messaging.NormalizeE164(sess.CallerPhone),
			Message:     fmt.Sprintf("%s wants to change or cancel an existing booking, call them back", sess.Name),
		})
		return m.finish(ctx, sess, "reschedule_request", messageCancelDone)
	}

	sess.Step = StepAccess
	return m.reply(ctx, sess, promptAccess())
}

func (m *Machine) stepAccess(ctx context.Context, cfg *tenant.Config, sess *CallSession, transcript string) TurnResult {
	sess.AccessNote = transcript

	if sess.Intent == intent.Quote {
		m.alerts.Publish(ctx, alerts.Alert{
			TenantID:    cfg.TenantID,
			Kind:        alerts.KindQuoteLead,
			CallerPhone: messaging.NormalizeE164(sess.CallerPhone),
			Message:     fmt.Sprintf("%s wants a quote: %s at %s", sess.Name, sess.Job, sess.Address),
		})
		return m.finish(ctx, sess, "quote_lead", messageQuoteDone)
	}

	sess.Step = StepTime
	return m.reply(ctx, sess, promptTime())
}

func (m *Machine) stepTime(ctx context.Context, cfg *tenant.Config, sess *CallSession, transcript string) TurnResult {
	sess.SpokenTime = transcript

	loc := cfg.Location()
	explicit := false
	desired := m.now().In(loc)
	if !timeparse.IsNoPreference(transcript) {
		if parsed, ok := timeparse.Normalize(transcript, loc, m.now().In(loc)); ok {
			desired = parsed
			explicit = true
		}
		// No parse is treated as "as soon as possible".
	}

	return m.searchAndPropose(ctx, cfg, sess, desired, explicit)
}

func (m *Machine) searchAndPropose(ctx context.Context, cfg *tenant.Config, sess *CallSession, desired time.Time, explicit bool) TurnResult {
	eng := scheduling.NewEngine(m.cal, cfg, m.logger).WithClock(m.now)

	searchStart := time.Now()
	slots, err := eng.NextAvailableSlots(ctx, desired, 3)
	if err != nil {
		m.metrics.ObserveSlotSearch("error", time.Since(searchStart).Seconds())
		m.logger.Error("availability search failed", "call_id", sess.CallID, "error", err)
		return m.manualFollowUp(ctx, cfg, sess)
	}
	if len(slots) == 0 {
		m.metrics.ObserveSlotSearch("exhausted", time.Since(searchStart).Seconds())
		return m.manualFollowUp(ctx, cfg, sess)
	}
	m.metrics.ObserveSlotSearch("found", time.Since(searchStart).Seconds())

	// An unspecified time takes the next open slot; an explicit one is
	// accepted silently only when the first slot is close enough.
	if !explicit || eng.MatchesDesired(desired, slots[0]) {
		return m.acceptSlot(ctx, cfg, sess, eng, slots[0])
	}

	sess.ProposedSlots = slots
	sess.Step = StepPickSlot
	return m.reply(ctx, sess, promptSlots(slots, cfg))
}

func (m *Machine) acceptSlot(ctx context.Context, cfg *tenant.Config, sess *CallSession, eng *scheduling.Engine, slot scheduling.Slot) TurnResult {
	start := slot.Start
	sess.BookedStart = &start
	sess.ProposedSlots = nil
	sess.Step = StepConfirm

	sess.Duplicate = nil
	if dup, err := eng.FindDuplicate(ctx, sess.Name, sess.Address, start); err != nil {
		// Duplicate detection is advisory; a search failure never blocks
		// the booking.
		m.logger.Warn("duplicate search failed", "call_id", sess.CallID, "error", err)
	} else if dup != nil {
		sess.Duplicate = &DuplicateRef{
			EventID: dup.ID,
			Summary: dup.Summary,
			When:    booking.FormatWhen(dup.Start, cfg.Location()),
		}
	}

	whenText := booking.FormatWhen(start, cfg.Location())
	if sess.Duplicate != nil {
		return m.reply(ctx, sess, promptConfirmWithDuplicate(sess, whenText))
	}
	return m.reply(ctx, sess, promptConfirm(sess, whenText))
}

func (m *Machine) stepPickSlot(ctx context.Context, cfg *tenant.Config, sess *CallSession, transcript string) TurnResult {
	if idx, ok := parseOrdinal(transcript, len(sess.ProposedSlots)); ok {
		eng := scheduling.NewEngine(m.cal, cfg, m.logger).WithClock(m.now)
		return m.acceptSlot(ctx, cfg, sess, eng, sess.ProposedSlots[idx])
	}

	// The caller may answer with a different time instead of an ordinal.
	if parsed, ok := timeparse.Normalize(transcript, cfg.Location(), m.now().In(cfg.Location())); ok {
		sess.SpokenTime = transcript
		sess.ProposedSlots = nil
		sess.Step = StepTime
		return m.searchAndPropose(ctx, cfg, sess, parsed, true)
	}

	return m.handleReject(ctx, cfg, sess)
}

func (m *Machine) stepConfirm(ctx context.Context, cfg *tenant.Config, sess *CallSession, transcript string) TurnResult {
	switch classifyConfirm(transcript, sess.Duplicate != nil) {
	case confirmYes:
		return m.commit(ctx, cfg, sess, "")
	case confirmUpdate:
		return m.commit(ctx, cfg, sess, sess.Duplicate.EventID)
	case confirmNo:
		sess.ClearProposal()
		sess.Step = StepTime
		return m.reply(ctx, sess, "No worries. "+promptTime())
	default:
		return m.reply(ctx, sess, "Sorry, was that a yes? "+sess.LastPrompt)
	}
}

func (m *Machine) commit(ctx context.Context, cfg *tenant.Config, sess *CallSession, replaceEventID string) TurnResult {
	start := *sess.BookedStart
	res := m.booker.Commit(ctx, cfg, booking.Request{
		CallID:         sess.CallID,
		CallerPhone:    sess.CallerPhone,
		Name:           sess.Name,
		Job:            sess.Job,
		Address:        sess.Address,
		AccessNote:     sess.AccessNote,
		Start:          start,
		End:            start.Add(cfg.JobDuration()),
		ReplaceEventID: replaceEventID,
	})

	_ = m.sessions.Delete(ctx, sess.CallID)
	details := detailsFrom(sess)
	details.EventID = res.EventID
	if !res.Booked {
		return TurnResult{Message: messageManualFollowUp, Done: true, Outcome: "manual_followup", Details: details}
	}
	return TurnResult{Message: messageBooked(res.WhenText), Done: true, Outcome: "booked", Details: details}
}

func (m *Machine) handleSilence(ctx context.Context, cfg *tenant.Config, sess *CallSession) TurnResult {
	sess.SilentTries++

	if sess.SilentTries >= cfg.MaxSilentTries {
		return m.escalate(ctx, cfg, sess, "silence", messageSilenceHangup)
	}

	if sess.SilentTries >= cfg.QuietCallTries && !sess.QuietAlertSent {
		sess.QuietAlertSent = true
		m.alerts.Publish(ctx, alerts.Alert{
			TenantID:    cfg.TenantID,
			Kind:        alerts.KindQuietCall,
			CallerPhone: messaging.NormalizeE164(sess.CallerPhone),
			Message:     "caller has gone quiet mid-call, may need a callback",
		})
	}

	prompt := sess.LastPrompt
	if prompt == "" {
		prompt = promptGreeting(cfg)
	}
	return m.reply(ctx, sess, promptSilence()+" "+prompt)
}

func (m *Machine) handleReject(ctx context.Context, cfg *tenant.Config, sess *CallSession) TurnResult {
	field := counterField(sess.Step)
	if field != "" {
		if sess.Reject(field) > cfg.MaxFieldRejects {
			return m.escalate(ctx, cfg, sess, "invalid_"+field, messageEscalation)
		}
	}

	prompt := sess.LastPrompt
	if prompt == "" {
		prompt = promptGreeting(cfg)
	}
	return m.reply(ctx, sess, "Sorry, I didn't quite get that. "+prompt)
}

func (m *Machine) escalate(ctx context.Context, cfg *tenant.Config, sess *CallSession, reason, message string) TurnResult {
	m.metrics.ObserveEscalation(reason)
	m.alerts.Publish(ctx, alerts.Alert{
		TenantID:    cfg.TenantID,
		Kind:        alerts.KindMissedRevenue,
		CallerPhone: messaging.NormalizeE164(sess.CallerPhone),
		Message:     missedRevenueSummary(sess, reason),
	})
	outcome := "escalated"
	if reason == "silence" {
		outcome = "silence_hangup"
	}
	return m.finish(ctx, sess, outcome, message)
}

func (m *Machine) manualFollowUp(ctx context.Context, cfg *tenant.Config, sess *CallSession) TurnResult {
	m.alerts.Publish(ctx, alerts.Alert{
		TenantID:    cfg.TenantID,
		Kind:        alerts.KindManualAction,
		CallerPhone: messaging.NormalizeE164(sess.CallerPhone),
		Message: fmt.Sprintf("couldn't offer %s a time for %s at %s, text them to lock one in",
			sess.Name, sess.Job, sess.Address),
	})
	return m.finish(ctx, sess, "manual_followup", messageManualFollowUp)
}

// finish ends the call: record the outcome, drop the session, say goodbye.
func (m *Machine) finish(ctx context.Context, sess *CallSession, outcome, message string) TurnResult {
	m.metrics.ObserveOutcome(outcome)
	_ = m.sessions.Delete(ctx, sess.CallID)
	return TurnResult{Message: message, Done: true, Outcome: outcome, Details: detailsFrom(sess)}
}

// reply saves the session and asks the next question.
func (m *Machine) reply(ctx context.Context, sess *CallSession, prompt string) TurnResult {
	sess.LastPrompt = prompt
	if err := m.sessions.Save(ctx, sess); err != nil {
		m.logger.Error("session save failed", "call_id", sess.CallID, "error", err)
	}
	return TurnResult{Message: prompt, Done: false}
}

func missedRevenueSummary(sess *CallSession, reason string) string {
	var b strings.Builder
	b.WriteString("call ended without a booking (")
	b.WriteString(reason)
	b.WriteString(")")
	if sess.Name != "" {
		b.WriteString(", caller " + sess.Name)
	}
	if sess.Job != "" {
		b.WriteString(", job: " + sess.Job)
	}
	if sess.Address != "" {
		b.WriteString(", address: " + sess.Address)
	}
	return b.String()
}
