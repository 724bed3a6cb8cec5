package audit

import (
	"context"
	"time"
)

type Action string

const (
	ActionLogin                  Action = "auth.login"
	ActionLoginFailed            Action = "auth.login_failed"
	ActionSocialLogin            Action = "auth.social_login"
	ActionRefresh                Action = "auth.refresh"
	ActionLogout                 Action = "auth.logout"
	ActionLogoutAll              Action = "auth.logout_all"
	ActionPasswordResetRequested Action = "auth.password_reset_requested"
	ActionPasswordReset          Action = "auth.password_reset"
	ActionPasswordChanged        Action = "auth.password_changed"
)

type Event struct {
	Action     Action    `json:"action"`
	UserID     int64     `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	IP         string    `json:"ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink receives audit events. Publish must not block the caller.
type Sink interface {
	Publish(ctx context.Context, event Event)
}

type contextKey string

const clientIPKey contextKey = "audit_client_ip"

// WithClientIP attaches the caller's address to ctx for later events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}
