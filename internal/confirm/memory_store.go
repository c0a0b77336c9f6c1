package confirm

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback used when DynamoDB is not
// configured. Records written here are only visible to this process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*PendingConfirmation
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*PendingConfirmation),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, rec *PendingConfirmation) error {
	if rec == nil || rec.Key == "" {
		return nil
	}
	now := s.now().UTC()
	rec.CreatedAt = now.Format(time.RFC3339Nano)
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = now.Add(TTL).Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Key] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*PendingConfirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if rec.ExpiresAt > 0 && rec.ExpiresAt <= s.now().Unix() {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Sweep drops expired records. Run keeps memory bounded for long-lived
// processes; the durable backend relies on DynamoDB TTL instead.
func (s *MemoryStore) Sweep() int {
	cutoff := s.now().Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if rec.ExpiresAt > 0 && rec.ExpiresAt <= cutoff {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on the given interval until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
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
