package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/models"
)

func TestRequireAuthClassification(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser(t, "guard@example.com", "password1", models.StatusActive)

	expired, _, err := ts.tokens.IssueWithTTL(user, auth.TokenTypeAccess, -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL() error = %v", err)
	}
	refresh, _, err := ts.tokens.IssueRefresh(user)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing", header: "", want: constants.ErrCodeTokenMissing},
		{name: "wrong_scheme", header: "Token abc", want: constants.ErrCodeTokenMalformed},
		{name: "lowercase_scheme", header: "bearer abc", want: constants.ErrCodeTokenMalformed},
		{name: "garbage", header: "Bearer not-a-jwt", want: constants.ErrCodeTokenSignatureInvalid},
		{name: "expired", header: "Bearer " + expired, want: constants.ErrCodeTokenExpired},
		{name: "refresh_as_access", header: "Bearer " + refresh, want: constants.ErrCodeTokenValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			ts.handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
			}

			var resp TokenErrorResponse
			decodeBody(t, rr, &resp)
			if resp.Error.Code != tt.want {
				t.Fatalf("error.code = %q, want %q", resp.Error.Code, tt.want)
			}
			if resp.Error.Message != tokenFailures[tt.want].message {
				t.Fatalf("error.message = %q, want %q", resp.Error.Message, tokenFailures[tt.want].message)
			}
			if resp.Error.Details.Reason == "" || resp.Error.Details.Suggestion == "" {
				t.Fatalf("details = %+v, want reason and suggestion", resp.Error.Details)
			}
			if resp.Error.Path != "/api/v1/users/me" {
				t.Fatalf("path = %q, want %q", resp.Error.Path, "/api/v1/users/me")
			}
			if _, err := time.Parse(time.RFC3339, resp.Error.Timestamp); err != nil {
				t.Fatalf("timestamp %q is not RFC 3339: %v", resp.Error.Timestamp, err)
			}
		})
	}
}

func TestRequireAuthRejectsRevokedToken(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "revoked@example.com", "password1", models.StatusActive)
	session := ts.login(t, "revoked@example.com", "password1")

	if rr := ts.do(t, http.MethodPost, "/api/v1/auth/logout", session.AccessToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d", rr.Code, http.StatusOK)
	}

	rr := ts.do(t, http.MethodGet, "/api/v1/users/me", session.AccessToken, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	var resp TokenErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Error.Code != constants.ErrCodeTokenValidationFailed {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeTokenValidationFailed)
	}
}

func TestWriteTokenErrorUnknownCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rr := httptest.NewRecorder()

	writeTokenError(rr, req, "SOMETHING_ELSE")

	var resp TokenErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Error.Code != constants.ErrCodeTokenValidationFailed {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, constants.ErrCodeTokenValidationFailed)
	}
}
