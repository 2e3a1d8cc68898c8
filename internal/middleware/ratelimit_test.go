package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowCapsAtLimit(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("6th attempt should be denied")
	}
	// A different client is unaffected.
	if !rl.Allow("10.0.0.2") {
		t.Error("other client should be allowed")
	}
}

func TestAllowWindowReset(t *testing.T) {
	rl := NewRateLimiter(3, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		rl.Allow("10.0.0.1")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("should be denied within the window")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Error("should be allowed after the window resets")
	}
}

func TestCleanup(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	expired := NewRateLimiter(5, 10*time.Millisecond)
	expired.Allow("gone")
	time.Sleep(15 * time.Millisecond)
	rl.Allow("active")

	expired.Cleanup()
	rl.Cleanup()

	expired.mu.Lock()
	if _, ok := expired.windows["gone"]; ok {
		t.Error("expired window should have been cleaned up")
	}
	expired.mu.Unlock()

	rl.mu.Lock()
	if _, ok := rl.windows["active"]; !ok {
		t.Error("active window should survive cleanup")
	}
	rl.mu.Unlock()
}

func TestLimitKeysByClientIP(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest("POST", "/api/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("203.0.113.7"); code != http.StatusOK {
			t.Errorf("attempt %d: status = %d, want %d", i+1, code, http.StatusOK)
		}
	}
	if code := send("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("over-limit attempt: status = %d, want %d", code, http.StatusTooManyRequests)
	}
	// A sibling on another IP still gets through.
	if code := send("203.0.113.8"); code != http.StatusOK {
		t.Errorf("other client: status = %d, want %d", code, http.StatusOK)
	}
}

func TestLimitRejectsWithJSONBody(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/login", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected a JSON error message")
	}
}
