package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// frozenLimiter returns a limiter whose clock never advances, so no tokens
// refill during the test.
func frozenLimiter(rps float64, burst int) *RateLimiter {
	rl := NewRateLimiter(rps, burst)
	now := time.Now()
	rl.now = func() time.Time { return now }
	return rl
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	handler := frozenLimiter(10, 10).Handler(okHandler())
	for i := range 10 {
		if rec := hit(handler, "192.168.1.1"); rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	handler := frozenLimiter(1, 5).Handler(okHandler())
	for range 5 {
		hit(handler, "192.168.1.1")
	}

	rec := hit(handler, "192.168.1.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Body.String() != `{"error":"rate limit exceeded"}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestRateLimiterSetsHeaders(t *testing.T) {
	rec := hit(frozenLimiter(10, 10).Handler(okHandler()), "192.168.1.1")
	if rec.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("expected 9 remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Errorf("expected limit 10, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	handler := frozenLimiter(1, 2).Handler(okHandler())
	for range 2 {
		hit(handler, "10.0.0.1")
	}

	if rec := hit(handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("IP 10.0.0.1: expected 429, got %d", rec.Code)
	}
	if rec := hit(handler, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("IP 10.0.0.2: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiterCapsTrackedIPs(t *testing.T) {
	rl := frozenLimiter(10, 10)
	rl.maxTracked = 1
	handler := rl.Handler(okHandler())

	hit(handler, "10.0.0.1")
	if rec := hit(handler, "10.0.0.2"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 at capacity, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(10, 10)
	rl.now = func() time.Time { return now }
	handler := rl.Handler(okHandler())

	hit(handler, "10.0.0.1")
	now = now.Add(time.Hour)
	hit(handler, "10.0.0.2")

	rl.cleanup(time.Minute)
	if rl.Len() != 1 {
		t.Fatalf("expected 1 tracked IP after cleanup, got %d", rl.Len())
	}
}
