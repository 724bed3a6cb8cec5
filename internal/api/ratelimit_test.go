package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatekeeper/internal/constants"
)

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		want   int
	}{
		{name: "zero", window: 0, want: 1},
		{name: "negative", window: -time.Second, want: 1},
		{name: "fractional_rounds_up", window: 1500 * time.Millisecond, want: 2},
		{name: "whole_second", window: time.Second, want: 1},
		{name: "minute", window: time.Minute, want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterSeconds(tt.window); got != tt.want {
				t.Fatalf("retryAfterSeconds(%s) = %d, want %d", tt.window, got, tt.want)
			}
		})
	}
}

func TestRateLimitRejectsWithJSON(t *testing.T) {
	resolver, err := NewClientIPResolver(nil)
	if err != nil {
		t.Fatalf("NewClientIPResolver() error = %v", err)
	}
	handler := RateLimit(resolver, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("198.51.100.1:1000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rr.Code, http.StatusOK)
		}
	}

	rr := send("198.51.100.1:2000")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want %q", got, "60")
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.Error.Code != constants.ErrCodeRateLimited {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeRateLimited)
	}

	if rr := send("198.51.100.2:1000"); rr.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSocialProvidersHaveSeparateLimits(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"token": "forged"}

	for i := 0; i < 10; i++ {
		if rr := ts.do(t, http.MethodPost, "/api/v1/auth/google", "", body); rr.Code == http.StatusTooManyRequests {
			t.Fatalf("google request %d rate limited early", i+1)
		}
	}
	if rr := ts.do(t, http.MethodPost, "/api/v1/auth/google", "", body); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("11th google status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr := ts.do(t, http.MethodPost, "/api/v1/auth/facebook", "", body); rr.Code != http.StatusUnauthorized {
		t.Fatalf("facebook status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
