package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "call:session:"
	// sessionTTL bounds an abandoned call's footprint; no call runs this
	// long, so expiry only ever reaps dead sessions.
	sessionTTL = 4 * time.Hour
)

// SessionStore holds in-progress call sessions keyed by call id.
type SessionStore interface {
	// Get returns the session, or nil when none exists.
	Get(ctx context.Context, callID string) (*CallSession, error)
	// Save persists the session, refreshing its lifetime.
	Save(ctx context.Context, s *CallSession) error
	// Delete removes the session on a terminal transition.
	Delete(ctx context.Context, callID string) error
}

// RedisSessionStore keeps sessions in Redis so any instance can serve a
// call's next turn.
type RedisSessionStore struct {
	rdb *redis.Client
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a session store backed by Redis.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	if rdb == nil {
		panic("dialog: redis client cannot be nil")
	}
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(callID string) string {
	return sessionKeyPrefix + callID
}

func (s *RedisSessionStore) Get(ctx context.Context, callID string) (*CallSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(callID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dialog: get session: %w", err)
	}
	var sess CallSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("dialog: unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *CallSession) error {
	if sess == nil || sess.CallID == "" {
		return fmt.Errorf("dialog: session call_id required")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("dialog: marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.CallID), data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("dialog: save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, callID string) error {
	if err := s.rdb.Del(ctx, sessionKey(callID)).Err(); err != nil {
		return fmt.Errorf("dialog: delete session: %w", err)
	}
	return nil
}

// MemorySessionStore is the single-process fallback when Redis is not
// configured.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

type entry struct {
	sess      *CallSession
	expiresAt time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, callID string) (*CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[callID]
	if !ok || s.now().After(e.expiresAt) {
		return nil, nil
	}
	cp := *e.sess
	return &cp, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess *CallSession) error {
	if sess == nil || sess.CallID == "" {
		return fmt.Errorf("dialog: session call_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.CallID] = &entry{sess: &cp, expiresAt: s.now().Add(sessionTTL)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemorySessionStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on the given interval until ctx is cancelled.
func (s *MemorySessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
