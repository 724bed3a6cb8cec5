package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const smtpTimeout = 30 * time.Second

type SMTPService struct {
	host     string
	port     int
	username string
	password string
	from     string
	resetURL string
}

func NewSMTPService(host string, port int, username, password, from, resetURL string) *SMTPService {
	return &SMTPService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		resetURL: resetURL,
	}
}

func (s *SMTPService) SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error {
	subject := "Reset your password"
	body := fmt.Sprintf(`Hello,

We received a request to reset the password for your account.
Use the link below to choose a new one:

    %s

This link will expire in %d minutes.

If you didn't request a reset, you can safely ignore this email.`, s.resetLink(token), int(ttl.Minutes()))

	return s.send(ctx, to, subject, body)
}

func (s *SMTPService) resetLink(token string) string {
	if s.resetURL == "" {
		return token
	}
	sep := "?"
	if strings.Contains(s.resetURL, "?") {
		sep = "&"
	}
	return s.resetURL + sep + "token=" + url.QueryEscape(token)
}

// send delivers one message over a fresh connection. The whole exchange is
// bounded by ctx and smtpTimeout.
func (s *SMTPService) send(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, smtpTimeout)
	defer cancel()

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.secure(client); err != nil {
		return err
	}
	if s.username != "" && s.password != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := deliver(client, s.from, to, s.buildMessage(to, subject, body)); err != nil {
		return err
	}

	if err := client.Quit(); err != nil {
		slog.Warn("smtp quit failed", "component", "email", "error", err)
	}
	return nil
}

func (s *SMTPService) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	return client, nil
}

// secure upgrades to TLS. Plain connections are only accepted on the local
// relay ports 25 and 1025.
func (s *SMTPService) secure(client *smtp.Client) error {
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
		return nil
	}
	if s.port == 25 || s.port == 1025 {
		return nil
	}
	return fmt.Errorf("smtp server on port %d does not offer STARTTLS", s.port)
}

func deliver(client *smtp.Client, from, to, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := io.WriteString(wc, msg); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp end body: %w", err)
	}
	return nil
}

func (s *SMTPService) buildMessage(to, subject, body string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		s.from, to, subject, body)
}

// LogMailer stands in when no SMTP server is configured.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, to, _ string, ttl time.Duration) error {
	slog.InfoContext(ctx, "smtp not configured, password reset email not sent", "component", "email", "to", to, "ttl", ttl)
	return nil
}
