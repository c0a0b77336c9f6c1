package confirm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchline/wrenchline/internal/alerts"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

func testResolver(t *testing.T) (*Resolver, *MemoryStore, *alerts.MemoryQueue) {
	t.Helper()
	store := NewMemoryStore()
	queue := alerts.NewMemoryQueue(8)
	pub := alerts.NewPublisher(queue, logging.Default())
	return NewResolver(store, pub, logging.Default()), store, queue
}

func drainAlerts(t *testing.T, q *alerts.MemoryQueue) []alerts.Alert {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msgs, err := q.Receive(ctx, 10, 0)
	if err != nil {
		// Timed out waiting; the queue is empty.
		return nil
	}
	out := make([]alerts.Alert, 0, len(msgs))
	for _, m := range msgs {
		var a alerts.Alert
		require.NoError(t, json.Unmarshal([]byte(m.Body), &a))
		out = append(out, a)
	}
	return out
}

func TestHandleReplyYesResolvesOnce(t *testing.T) {
	r, store, queue := testResolver(t)
	ctx := context.Background()

	rec := sampleRecord("tnt-1", "+61400111222")
	require.NoError(t, store.Put(ctx, rec))

	reply, err := r.HandleReply(ctx, "tnt-1", "+61 400 111 222", "Y")
	require.NoError(t, err)
	assert.Contains(t, reply, "Sam")
	assert.Contains(t, reply, rec.When)

	got := drainAlerts(t, queue)
	require.Len(t, got, 1)
	assert.Equal(t, alerts.KindConfirmed, got[0].Kind)

	// The record is gone; a duplicate Y gets the generic fallback and no
	// second alert.
	reply, err = r.HandleReply(ctx, "tnt-1", "+61 400 111 222", "Y")
	require.NoError(t, err)
	assert.Equal(t, replyFallback, reply)
	assert.Empty(t, drainAlerts(t, queue))
}

func TestHandleReplyNoDeletesAndAlertsOwner(t *testing.T) {
	r, store, queue := testResolver(t)
	ctx := context.Background()

	rec := sampleRecord("tnt-1", "+61400111222")
	require.NoError(t, store.Put(ctx, rec))

	reply, err := r.HandleReply(ctx, "tnt-1", "+61400111222", "no, that time doesn't work")
	require.NoError(t, err)
	assert.Equal(t, replyDeclined, reply)

	got := drainAlerts(t, queue)
	require.Len(t, got, 1)
	assert.Equal(t, alerts.KindDeclined, got[0].Kind)

	gone, err := store.Get(ctx, rec.Key)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestHandleReplyAmbiguousRepromptsWithoutMutating(t *testing.T) {
	r, store, queue := testResolver(t)
	ctx := context.Background()

	rec := sampleRecord("tnt-1", "+61400111222")
	require.NoError(t, store.Put(ctx, rec))

	reply, err := r.HandleReply(ctx, "tnt-1", "+61400111222", "what was the address again?")
	require.NoError(t, err)
	assert.Contains(t, reply, "reply Y")
	assert.Empty(t, drainAlerts(t, queue))

	still, err := store.Get(ctx, rec.Key)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestHandleReplyNoPendingRecord(t *testing.T) {
	r, _, queue := testResolver(t)

	reply, err := r.HandleReply(context.Background(), "tnt-1", "+61499999999", "Y")
	require.NoError(t, err)
	assert.Equal(t, replyFallback, reply)
	assert.Empty(t, drainAlerts(t, queue))
}

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		body string
		want replyKind
	}{
		{"Y", replyYes},
		{"yes please", replyYes},
		{"Yep!", replyYes},
		{"ok", replyYes},
		{"N", replyNo},
		{"nah", replyNo},
		{"I need to reschedule actually", replyNo},
		{"maybe", replyOther},
		{"", replyOther},
		{"what time was that?", replyOther},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, classifyReply(tc.body), "body %q", tc.body)
	}
}
