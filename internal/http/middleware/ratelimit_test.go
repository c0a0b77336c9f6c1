package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterExhaustsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	if !rl.Allow("203.0.113.7") {
		t.Fatalf("first request should pass")
	}
	if !rl.Allow("203.0.113.7") {
		t.Fatalf("second request should pass within burst")
	}
	if rl.Allow("203.0.113.7") {
		t.Fatalf("third request should be rejected")
	}
	if !rl.Allow("203.0.113.8") {
		t.Fatalf("a different IP has its own bucket")
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	if !rl.Allow("203.0.113.7") {
		t.Fatalf("first request should pass")
	}
	if rl.Allow("203.0.113.7") {
		t.Fatalf("bucket should be empty")
	}

	now = now.Add(1500 * time.Millisecond)
	if !rl.Allow("203.0.113.7") {
		t.Fatalf("bucket should refill after a second")
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	mw := RateLimit(1, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/turn", nil)
	req.RemoteAddr = "203.0.113.7:54321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}
}
