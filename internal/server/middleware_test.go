package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("expected response body")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("10.0.0.1:1111"); code != http.StatusOK {
		t.Errorf("first request = %d", code)
	}
	// Same host on another port shares the bucket.
	if code := send("10.0.0.1:2222"); code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", code)
	}
	if code := send("10.0.0.2:1111"); code != http.StatusOK {
		t.Errorf("other client = %d", code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(5 * time.Minute)
	rl.getLimiter("b")
	now = now.Add(6 * time.Minute)

	rl.cleanup(10 * time.Minute)
	if rl.size() != 1 {
		t.Errorf("size = %d, want 1", rl.size())
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("recent client was dropped")
	}
}
