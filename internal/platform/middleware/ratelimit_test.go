package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newTestLimiter(rps float64, burst int) (*limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)}
	return newLimiter(RateLimitConfig{RequestsPerSecond: rps, BurstSize: burst, IdleTTL: time.Minute}, clock.Now), clock
}

func serve(t *testing.T, h echo.HandlerFunc, userID string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	return rec, h(c)
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := serve(t, h, "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	l, _ := newTestLimiter(1, 2)
	h := rateLimit(l)(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := serve(t, h, ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := serve(t, h, "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry != 1 {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_Refills(t *testing.T) {
	l, clock := newTestLimiter(2, 1)
	h := rateLimit(l)(okHandler)

	if _, err := serve(t, h, "u1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := serve(t, h, "u1"); err == nil {
		t.Fatal("expected second immediate request to be limited")
	}

	clock.now = clock.now.Add(500 * time.Millisecond)
	if _, err := serve(t, h, "u1"); err != nil {
		t.Fatalf("expected a token after refill, got %v", err)
	}
}

func TestRateLimit_PerUserIsolation(t *testing.T) {
	l, _ := newTestLimiter(1, 1)
	h := rateLimit(l)(okHandler)

	if _, err := serve(t, h, "user-a"); err != nil {
		t.Fatalf("user-a first request: %v", err)
	}
	if _, err := serve(t, h, "user-a"); err == nil {
		t.Fatal("user-a second request: expected rate limit error")
	}
	if _, err := serve(t, h, "user-b"); err != nil {
		t.Fatalf("user-b first request: %v", err)
	}
	// Anonymous requests use the IP bucket.
	if _, err := serve(t, h, ""); err != nil {
		t.Fatalf("anonymous first request: %v", err)
	}
}

func TestLimiter_ZeroRate(t *testing.T) {
	l, _ := newTestLimiter(0, 1)
	l.take("k")
	ok, retry := l.take("k")
	if ok || retry != 1 {
		t.Errorf("expected denial with retry 1, got %v %d", ok, retry)
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter(1, 1)
	l.take("a")
	l.take("b")
	if l.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.size())
	}

	clock.now = clock.now.Add(2 * time.Minute)
	l.take("c")
	if l.size() != 1 {
		t.Errorf("expected idle buckets evicted, got %d", l.size())
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 20 || cfg.BurstSize != 40 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
