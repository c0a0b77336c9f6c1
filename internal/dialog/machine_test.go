package dialog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/internal/booking"
	"github.com/wrenchline/wrenchline/internal/calendar"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

type fakeBooker struct {
	reqs   []booking.Request
	result booking.Result
}

func (b *fakeBooker) Commit(_ context.Context, _ *tenant.Config, req booking.Request) booking.Result {
	b.reqs = append(b.reqs, req)
	return b.result
}

type machineFixture struct {
	machine  *Machine
	sessions *MemorySessionStore
	cal      *calendar.Fake
	booker   *fakeBooker
	queue    *alerts.MemoryQueue
	cfg      *tenant.Config
	now      time.Time
}

// The clock is anchored at Tuesday 10 March 2026, 10:00 in Sydney, same as
// the scheduling tests. Default hours are Mon-Thu 07:00-17:00, Fri
// 07:00-16:00.
func newMachineFixture(t *testing.T) *machineFixture {
	t.Helper()
	cfg := tenant.DefaultConfig("tnt-1")
	cfg.CalendarID = "cal-1"
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, cfg.Location())

	sessions := NewMemorySessionStore()
	cal := calendar.NewFake()
	booker := &fakeBooker{result: booking.Result{
		Booked:   true,
		EventID:  "evt-1",
		WhenText: "Wednesday 11 March at 9:00am",
	}}
	queue := alerts.NewMemoryQueue(32)

	m := NewMachine(sessions, cal, booker, alerts.NewPublisher(queue, logging.Default()), nil, logging.Default()).
		WithClock(func() time.Time { return now })

	return &machineFixture{
		machine:  m,
		sessions: sessions,
		cal:      cal,
		booker:   booker,
		queue:    queue,
		cfg:      cfg,
		now:      now,
	}
}

func (f *machineFixture) turn(transcript string) TurnResult {
	return f.machine.HandleTurn(context.Background(), f.cfg, TurnInput{
		CallID:      "call-1",
		CallerPhone: "+61 400 111 222",
		Transcript:  transcript,
		Confidence:  0.92,
	})
}

func (f *machineFixture) session(t *testing.T) *CallSession {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), "call-1")
	require.NoError(t, err)
	return sess
}

func drainKinds(t *testing.T, q *alerts.MemoryQueue) []alerts.Kind {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msgs, err := q.Receive(ctx, 10, 0)
	if err != nil {
		return nil
	}
	kinds := make([]alerts.Kind, 0, len(msgs))
	for _, m := range msgs {
		var a alerts.Alert
		require.NoError(t, json.Unmarshal([]byte(m.Body), &a))
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestFirstTurnGreetsCaller(t *testing.T) {
	f := newMachineFixture(t)

	res := f.turn("")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, f.cfg.Name)

	sess := f.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, StepIntent, sess.Step)
}

func TestHappyPathThroughToBooked(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")
	res := f.turn("hi, I need someone to look at a blocked drain")
	assert.Contains(t, res.Message, "What's the job")

	res = f.turn("kitchen sink is blocked and draining real slow")
	assert.Contains(t, res.Message, "address")

	res = f.turn("12 Smith Street, Newtown")
	assert.Contains(t, res.Message, "name")

	res = f.turn("Sam Taylor")
	assert.Contains(t, res.Message, "getting in")

	res = f.turn("side gate's unlocked, watch out for the dog")
	assert.Contains(t, res.Message, "When would suit")

	// Wednesday 9am is free, so it is accepted silently and we go straight
	// to confirmation.
	res = f.turn("tomorrow at 9am")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "Wednesday 11 March at 9:00am")
	assert.Contains(t, res.Message, "lock that in")

	res = f.turn("yes please")
	assert.True(t, res.Done)
	assert.Contains(t, res.Message, "all booked")
	assert.Equal(t, "booked", res.Outcome)
	require.NotNil(t, res.Details)
	assert.Equal(t, "evt-1", res.Details.EventID)
	assert.Equal(t, "Sam Taylor", res.Details.Name)

	require.Len(t, f.booker.reqs, 1)
	req := f.booker.reqs[0]
	assert.Equal(t, "Sam Taylor", req.Name)
	assert.Equal(t, "12 Smith Street, Newtown", req.Address)
	wantStart := time.Date(2026, 3, 11, 9, 0, 0, 0, f.cfg.Location())
	assert.True(t, req.Start.Equal(wantStart), "got %s", req.Start)
	assert.True(t, req.End.Equal(wantStart.Add(f.cfg.JobDuration())))
	assert.Empty(t, req.ReplaceEventID)

	assert.Nil(t, f.session(t), "session must be gone after the call ends")
}

func TestEmergencySkipsJobQuestion(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")
	res := f.turn("my pipe burst and there's water everywhere")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "address")

	sess := f.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, StepAddress, sess.Step)
	// The opening utterance doubles as the job description.
	assert.Equal(t, "my pipe burst and there's water everywhere", sess.Job)
}

func TestCancelRescheduleEndsAfterName(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")
	res := f.turn("I need to reschedule my booking")
	assert.Contains(t, res.Message, "name the booking is under")

	res = f.turn("Sam Taylor")
	assert.True(t, res.Done)
	assert.Equal(t, messageCancelDone, res.Message)

	assert.Equal(t, []alerts.Kind{alerts.KindReschedule}, drainKinds(t, f.queue))
	assert.Nil(t, f.session(t))
	assert.Empty(t, f.booker.reqs)
}

func TestQuoteEndsAfterAccessWithLeadAlert(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")
	f.turn("how much would a new hot water system cost")
	f.turn("replace an old electric hot water system")
	f.turn("12 Smith Street, Newtown")
	f.turn("Sam Taylor")
	res := f.turn("side access is fine")

	assert.True(t, res.Done)
	assert.Equal(t, messageQuoteDone, res.Message)
	assert.Equal(t, []alerts.Kind{alerts.KindQuoteLead}, drainKinds(t, f.queue))
	assert.Nil(t, f.session(t))
	assert.Empty(t, f.booker.reqs)
}

func TestRepeatedInvalidAddressEscalates(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")
	f.turn("my pipe burst and there's water everywhere")

	// Two bad answers re-prompt, the third gives up.
	res := f.turn("um")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "didn't quite get that")

	res = f.turn("hmm")
	assert.False(t, res.Done)

	res = f.turn("uh")
	assert.True(t, res.Done)
	assert.Equal(t, messageEscalation, res.Message)
	assert.Equal(t, "escalated", res.Outcome)

	assert.Equal(t, []alerts.Kind{alerts.KindMissedRevenue}, drainKinds(t, f.queue))
	assert.Nil(t, f.session(t))
}

func TestSilenceAdvisoryThenHangup(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")

	res := f.turn("")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "still with me")
	assert.Empty(t, drainKinds(t, f.queue), "no alert after one quiet turn")

	res = f.turn("")
	assert.False(t, res.Done)
	assert.Equal(t, []alerts.Kind{alerts.KindQuietCall}, drainKinds(t, f.queue))

	res = f.turn("")
	assert.False(t, res.Done)
	assert.Empty(t, drainKinds(t, f.queue), "advisory fires once")

	res = f.turn("")
	assert.True(t, res.Done)
	assert.Equal(t, messageSilenceHangup, res.Message)
	assert.Equal(t, "silence_hangup", res.Outcome)
	assert.Equal(t, []alerts.Kind{alerts.KindMissedRevenue}, drainKinds(t, f.queue))
	assert.Nil(t, f.session(t))
}

func TestSpeakingResetsSilenceCounter(t *testing.T) {
	f := newMachineFixture(t)

	f.turn("")
	f.turn("")
	f.turn("")
	f.turn("I need someone to look at a blocked drain")

	sess := f.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, 0, sess.SilentTries)
}

// Walk a session up to the point where a time is asked for.
func reachTimeStep(t *testing.T, f *machineFixture) {
	t.Helper()
	f.turn("")
	f.turn("I need someone to look at a blocked drain")
	f.turn("kitchen sink is blocked")
	f.turn("12 Smith Street, Newtown")
	f.turn("Sam Taylor")
	res := f.turn("side gate's unlocked")
	require.Contains(t, res.Message, "When would suit")
}

func TestBusyDesiredTimeOffersAlternatives(t *testing.T) {
	f := newMachineFixture(t)
	loc := f.cfg.Location()

	// Wednesday 9-10 is taken, so 9am can't be accepted silently.
	busy := time.Date(2026, 3, 11, 9, 0, 0, 0, loc)
	f.cal.Seed("cal-1", busy, busy.Add(time.Hour), "existing job")

	reachTimeStep(t, f)

	res := f.turn("tomorrow at 9am")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "the first is")
	assert.Contains(t, res.Message, "Which one works")

	sess := f.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, StepPickSlot, sess.Step)
	require.Len(t, sess.ProposedSlots, 3)
	// First free start after the busy hour.
	assert.True(t, sess.ProposedSlots[0].Start.Equal(busy.Add(time.Hour)))

	second := sess.ProposedSlots[1].Start
	res = f.turn("the second one")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "lock that in")

	res = f.turn("yep")
	assert.True(t, res.Done)
	require.Len(t, f.booker.reqs, 1)
	assert.True(t, f.booker.reqs[0].Start.Equal(second), "got %s want %s", f.booker.reqs[0].Start, second)
}

func TestNearDesiredTimeAcceptedSilently(t *testing.T) {
	f := newMachineFixture(t)
	f.cfg.SlotToleranceMins = 20
	loc := f.cfg.Location()

	// A short clash pushes the first slot to 9:15, fifteen minutes past the
	// requested 9am. That lands within the widened tolerance, so the caller
	// goes straight to confirmation instead of a slot menu.
	busy := time.Date(2026, 3, 11, 8, 55, 0, 0, loc)
	f.cal.Seed("cal-1", busy, busy.Add(10*time.Minute), "existing job")

	reachTimeStep(t, f)

	res := f.turn("tomorrow at 9am")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "Wednesday 11 March at 9:15am")
	assert.Contains(t, res.Message, "lock that in")

	sess := f.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, StepConfirm, sess.Step)
}

func TestConfirmNoGoesBackToTime(t *testing.T) {
	f := newMachineFixture(t)

	reachTimeStep(t, f)
	res := f.turn("tomorrow at 9am")
	require.Contains(t, res.Message, "lock that in")

	res = f.turn("no, that doesn't work")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "When would suit")

	sess := f.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, StepTime, sess.Step)
	assert.Nil(t, sess.BookedStart)

	res = f.turn("thursday at 10am")
	assert.Contains(t, res.Message, "Thursday 12 March at 10:00am")

	res = f.turn("yeah")
	assert.True(t, res.Done)
	require.Len(t, f.booker.reqs, 1)
	wantStart := time.Date(2026, 3, 12, 10, 0, 0, 0, f.cfg.Location())
	assert.True(t, f.booker.reqs[0].Start.Equal(wantStart))
}

func TestNoTimePreferenceTakesNextSlot(t *testing.T) {
	f := newMachineFixture(t)

	reachTimeStep(t, f)

	// Tuesday 10:00 is inside hours on a free calendar, so the next slot
	// starts a few minutes out.
	res := f.turn("whenever, as soon as you can")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "lock that in")

	sess := f.session(t)
	require.NotNil(t, sess)
	require.NotNil(t, sess.BookedStart)
	assert.True(t, sess.BookedStart.Equal(f.now.Add(5*time.Minute)), "got %s", sess.BookedStart)
}

func TestExistingBookingOffersUpdate(t *testing.T) {
	f := newMachineFixture(t)
	loc := f.cfg.Location()

	prior := time.Date(2026, 3, 9, 13, 0, 0, 0, loc)
	ev := f.cal.Seed("cal-1", prior, prior.Add(time.Hour), "Blocked drain - Sam Taylor")
	f.cal.SetDescription("cal-1", ev.ID,
		"Customer: Sam Taylor\nPhone: +61400111222\nAddress: 12 Smith Street, Newtown\nJob: blocked drain")

	reachTimeStep(t, f)

	res := f.turn("tomorrow at 9am")
	assert.False(t, res.Done)
	assert.Contains(t, res.Message, "already got a booking")
	assert.Contains(t, res.Message, "update")

	res = f.turn("update it thanks")
	assert.True(t, res.Done)
	require.Len(t, f.booker.reqs, 1)
	assert.Equal(t, ev.ID, f.booker.reqs[0].ReplaceEventID)
}

func TestCalendarOutageDegradesToManualFollowUp(t *testing.T) {
	f := newMachineFixture(t)
	f.cal.ListErr = calendar.ErrUnavailable

	reachTimeStep(t, f)

	res := f.turn("tomorrow at 9am")
	assert.True(t, res.Done)
	assert.Equal(t, messageManualFollowUp, res.Message)
	assert.Equal(t, []alerts.Kind{alerts.KindManualAction}, drainKinds(t, f.queue))
	assert.Nil(t, f.session(t))
	assert.Empty(t, f.booker.reqs)
}

func TestCommitFailureReportsFollowUp(t *testing.T) {
	f := newMachineFixture(t)
	f.booker.result = booking.Result{Booked: false}

	reachTimeStep(t, f)
	f.turn("tomorrow at 9am")
	res := f.turn("yes")

	assert.True(t, res.Done)
	assert.Equal(t, messageManualFollowUp, res.Message)
	assert.Nil(t, f.session(t))
}

func TestValidTranscript(t *testing.T) {
	cases := []struct {
		name  string
		step  Step
		text  string
		conf  float64
		valid bool
	}{
		{"near empty", StepJob, "k", 0.9, false},
		{"filler only", StepName, "um", 0.9, false},
		{"one word job ok", StepJob, "plumbing", 0.9, true},
		{"one word address rejected", StepAddress, "smith", 0.9, false},
		{"real address ok", StepAddress, "12 Smith Street", 0.9, true},
		{"one word name ok", StepName, "Dave", 0.9, true},
		{"low confidence short", StepName, "sam", 0.2, false},
		{"low confidence ok at job", StepJob, "drain", 0.2, true},
		{"confirm yes ok", StepConfirm, "yes", 0.9, true},
		{"ordinal ok", StepPickSlot, "first", 0.9, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, validTranscript(tc.step, tc.text, tc.conf))
		})
	}
}

func TestParseOrdinal(t *testing.T) {
	idx, ok := parseOrdinal("the second one", 3)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = parseOrdinal("last", 2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = parseOrdinal("the third one", 2)
	assert.False(t, ok, "ordinal past the offered count")

	_, ok = parseOrdinal("dunno", 3)
	assert.False(t, ok)
}

func TestClassifyConfirm(t *testing.T) {
	assert.Equal(t, confirmYes, classifyConfirm("yeah righto", false))
	assert.Equal(t, confirmNo, classifyConfirm("nah mate", false))
	assert.Equal(t, confirmNo, classifyConfirm("can we do another time", false))
	assert.Equal(t, confirmUpdate, classifyConfirm("just update the old one", true))
	assert.Equal(t, confirmOther, classifyConfirm("just update the old one", false),
		"update only means something when a duplicate was found")
	assert.Equal(t, confirmOther, classifyConfirm("what was the price again", false))
}
