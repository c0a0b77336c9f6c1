package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchline/wrenchline/pkg/logging"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	errs  []error
	calls int
}

func (r *recordingNotifier) NotifyOwner(_ context.Context, tenantID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}
	r.sent = append(r.sent, tenantID+"|"+text)
	return nil
}

func (r *recordingNotifier) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "one"))
	require.NoError(t, q.Send(ctx, "two"))

	msgs, err := q.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "two", msgs[1].Body)
	assert.NotEmpty(t, msgs[0].ID)
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)
	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPublisherEncodesAlert(t *testing.T) {
	q := NewMemoryQueue(1)
	p := NewPublisher(q, logging.Default())

	p.Publish(context.Background(), Alert{
		TenantID:    "tnt-1",
		Kind:        KindMissedRevenue,
		CallerPhone: "+61400111222",
		Message:     "caller gave up at the address step",
	})

	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got Alert
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Body), &got))
	assert.Equal(t, KindMissedRevenue, got.Kind)
	assert.Equal(t, "tnt-1", got.TenantID)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestPublisherNilQueueIsNoOp(t *testing.T) {
	p := NewPublisher(nil, logging.Default())
	p.Publish(context.Background(), Alert{Kind: KindSystemError, Message: "x"})
}

func TestDispatcherDeliversAndStops(t *testing.T) {
	q := NewMemoryQueue(4)
	n := &recordingNotifier{}
	d := NewDispatcher(q, n, logging.Default(), 1, 1)

	p := NewPublisher(q, logging.Default())
	p.Publish(context.Background(), Alert{TenantID: "tnt-1", Kind: KindQuoteLead, Message: "new quote lead"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(n.delivered()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, n.delivered()[0], "tnt-1|Quote request: new quote lead")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}

type brokenQueue struct {
	mu       sync.Mutex
	receives int
}

func (b *brokenQueue) Send(context.Context, string) error { return nil }

func (b *brokenQueue) Receive(context.Context, int, int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receives++
	return nil, errors.New("queue down")
}

func (b *brokenQueue) Delete(context.Context, string) error { return nil }

func (b *brokenQueue) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receives
}

func TestDispatcherBacksOffOnReceiveError(t *testing.T) {
	q := &brokenQueue{}
	d := NewDispatcher(q, &recordingNotifier{}, logging.Default(), 1, 1)
	d.backoff = 40 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	// Without the wait between failed polls the loop would spin through
	// thousands of receives inside the window.
	assert.LessOrEqual(t, q.calls(), 6)
	assert.GreaterOrEqual(t, q.calls(), 1)
}

func TestDispatcherDropsMalformedMessage(t *testing.T) {
	q := NewMemoryQueue(1)
	n := &recordingNotifier{}
	d := NewDispatcher(q, n, logging.Default(), 1, 1)

	require.NoError(t, q.Send(context.Background(), "not json"))
	d.handle(context.Background(), Message{ID: "m1", Body: "not json", ReceiptHandle: "r1"})
	assert.Empty(t, n.delivered())
}

func TestFormatOwnerText(t *testing.T) {
	a := Alert{Kind: KindSystemError, Message: "turn handler panicked", CallerPhone: "+61400111222"}
	assert.Equal(t, "System error: turn handler panicked (caller +61400111222)", FormatOwnerText(a))

	b := Alert{Kind: Kind("unknown"), Message: "hello"}
	assert.Equal(t, "Alert: hello", FormatOwnerText(b))
}
