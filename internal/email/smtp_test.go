package email

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestResetLink(t *testing.T) {
	tests := []struct {
		name     string
		resetURL string
		want     string
	}{
		{name: "no_url", resetURL: "", want: "a.b+c"},
		{name: "plain", resetURL: "https://app.example.com/reset", want: "https://app.example.com/reset?token=a.b%2Bc"},
		{name: "existing_query", resetURL: "https://app.example.com/reset?src=mail", want: "https://app.example.com/reset?src=mail&token=a.b%2Bc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSMTPService("localhost", 1025, "", "", "noreply@example.com", tt.resetURL)
			if got := s.resetLink("a.b+c"); got != tt.want {
				t.Fatalf("resetLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	s := NewSMTPService("localhost", 1025, "", "", "noreply@example.com", "")
	msg := s.buildMessage("bob@example.com", "Reset your password", "body")

	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: bob@example.com\r\n",
		"Subject: Reset your password\r\n",
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\nbody",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message = %q, want it to contain %q", msg, want)
		}
	}
}

func TestSendFailsWhenServerUnreachable(t *testing.T) {
	s := NewSMTPService("127.0.0.1", 1, "", "", "noreply@example.com", "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.SendPasswordReset(ctx, "bob@example.com", "tok", 15*time.Minute); err == nil {
		t.Fatal("SendPasswordReset() error = nil, want connection error")
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	if err := (LogMailer{}).SendPasswordReset(context.Background(), "bob@example.com", "tok", time.Minute); err != nil {
		t.Fatalf("SendPasswordReset() error = %v", err)
	}
}
