package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/config"
	"gatekeeper/internal/db"
	"gatekeeper/internal/models"
	"gatekeeper/internal/revocation"
	"gatekeeper/internal/social"
)

const testSecret = "api-test-secret-0123456789abcdef"

type stubVerifier struct {
	profiles map[string]*social.Profile
}

func (s *stubVerifier) Verify(_ context.Context, provider models.Provider, token string) (*social.Profile, error) {
	p, ok := s.profiles[token]
	if !ok {
		return nil, social.ErrInvalidToken
	}
	out := *p
	out.Provider = provider
	return &out, nil
}

type capturedReset struct {
	to, token string
}

type captureMailer struct {
	sent []capturedReset
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, token string, _ time.Duration) error {
	m.sent = append(m.sent, capturedReset{to: to, token: token})
	return nil
}

type testServer struct {
	handler  http.Handler
	db       *db.DB
	users    *db.UserRepository
	tokens   *auth.TokenIssuer
	verifier *stubVerifier
	mailer   *captureMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.Open(context.Background(), db.Options{
		Driver: db.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	tokens, err := auth.NewTokenIssuer(testSecret, 15*time.Minute, 24*time.Hour, 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	ts := &testServer{
		db:       database,
		users:    db.NewUserRepository(database),
		tokens:   tokens,
		verifier: &stubVerifier{profiles: map[string]*social.Profile{}},
		mailer:   &captureMailer{},
	}

	service := auth.NewService(auth.Dependencies{
		Users:       ts.users,
		Identities:  db.NewSocialIdentityRepository(database),
		Tokens:      tokens,
		Passwords:   auth.NewPasswordHasher(bcrypt.MinCost, 2),
		Revocations: revocation.NewService(db.NewRevokedTokenRepository(database), nil),
		Social:      ts.verifier,
		Mailer:      ts.mailer,
	})

	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"https://app.example.com"}

	server, err := NewServer(cfg, service, map[string]Pinger{"database": database})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts.handler = server
	return ts
}

func (ts *testServer) createUser(t *testing.T, email, password string, status models.Status) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	u, err := ts.users.Create(context.Background(), &models.User{
		FirstName:    "Api",
		LastName:     "User",
		Email:        email,
		PasswordHash: string(hash),
		Status:       status,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return u
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.20:5000"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) login(t *testing.T, email, password string) SessionResponse {
	t.Helper()

	rr := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d, body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var session SessionResponse
	decodeBody(t, rr, &session)
	return session
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	return resp.Error.Code
}
