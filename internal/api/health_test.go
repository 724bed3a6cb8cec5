package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantResult string
	}{
		{
			name:       "all_ok",
			checks:     map[string]Pinger{"database": PingFunc(func(context.Context) error { return nil })},
			wantStatus: http.StatusOK,
			wantResult: "ok",
		},
		{
			name: "redis_down",
			checks: map[string]Pinger{
				"database": PingFunc(func(context.Context) error { return nil }),
				"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantResult: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHealthHandler(tt.checks).Check(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			decodeBody(t, rr, &body)
			if body.Status != tt.wantResult {
				t.Fatalf("status field = %q, want %q", body.Status, tt.wantResult)
			}
			if len(body.Checks) != len(tt.checks) {
				t.Fatalf("checks = %v, want %d entries", body.Checks, len(tt.checks))
			}
		})
	}
}

func TestHealthEndpointUsesDatabase(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
