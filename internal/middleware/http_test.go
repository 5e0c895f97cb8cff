package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zonegate/internal/rate"
)

func TestClientIPTrustProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.5")

	if got := ClientIP(r, false); got != "10.0.0.5" {
		t.Fatalf("unexpected direct IP: %s", got)
	}
	if got := ClientIP(r, true); got != "1.2.3.4" {
		t.Fatalf("unexpected proxied IP: %s", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := RateLimit(rate.NewLimiter(), "test", 2, time.Minute, false)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/", nil)
		r.RemoteAddr = "10.0.0.5:12345"
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", rec.Code)
	}

	// A different client is counted separately.
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.9:12345"
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("other client should pass, got %d", rec.Code)
	}
}
