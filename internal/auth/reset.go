package auth

import (
	"context"
	"errors"
	"log/slog"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/db"
)

// RequestPasswordReset mails a short-lived reset token when the account
// exists. The reply is the same either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) string {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			slog.Error("password reset lookup failed", "error", err)
		}
		return MsgResetEmailSent
	}

	token, _, err := s.tokens.IssueReset(user)
	if err != nil {
		slog.Error("failed to issue reset token", "user_id", user.ID, "error", err)
		return MsgResetEmailSent
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, token, s.tokens.resetTTL); err != nil {
			slog.Error("failed to send password reset email", "user_id", user.ID, "error", err)
		}
	}

	s.publish(ctx, audit.Event{Action: audit.ActionPasswordResetRequested, UserID: user.ID, Email: user.Email})
	return MsgResetEmailSent
}

// ResetPassword sets a new password using a reset token. The token is
// claimed before the password changes, so of two concurrent requests with
// the same token only one succeeds. The stored refresh token is cleared.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	invalid := func(reason string, err error) (string, error) {
		slog.Info("password reset rejected", "reason", reason, "error", err)
		return "", newError(KindTokenInvalid, MsgTokenInvalid, reason, err)
	}

	claims, err := s.tokens.Parse(token, TokenTypeReset)
	if err != nil {
		return invalid(TokenCode(err), err)
	}
	key := claims.RevocationKey(token)
	if s.revocations.IsRevoked(ctx, key) {
		return invalid("reset token already used", nil)
	}

	userID, err := claims.UserID()
	if err != nil {
		return invalid("bad subject", err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return invalid("unknown user", nil)
		}
		return "", internalError("looking up user", err)
	}

	hash, err := s.passwords.Hash(ctx, newPassword)
	if err != nil {
		return "", internalError("hashing password", err)
	}

	claimed, err := s.revocations.Claim(ctx, key, claims.Expiry())
	if err != nil {
		return "", internalError("claiming reset token", err)
	}
	if !claimed {
		return invalid("reset token already used", nil)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", internalError("updating password", err)
	}
	if err := s.users.ClearRefreshToken(ctx, user.ID); err != nil {
		slog.Error("failed to clear refresh token after reset", "user_id", user.ID, "error", err)
	}

	s.publish(ctx, audit.Event{Action: audit.ActionPasswordReset, UserID: user.ID, Email: user.Email})
	return MsgPasswordResetSuccess, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (string, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return "", err
	}

	ok, err := s.passwords.Compare(ctx, user.PasswordHash, currentPassword)
	if err != nil {
		return "", internalError("comparing password", err)
	}
	if !ok {
		return "", newError(KindInvalidCredentials, MsgCurrentPasswordMismatch, "current password mismatch", ErrPasswordMismatch)
	}

	hash, err := s.passwords.Hash(ctx, newPassword)
	if err != nil {
		return "", internalError("hashing password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", internalError("updating password", err)
	}

	s.publish(ctx, audit.Event{Action: audit.ActionPasswordChanged, UserID: user.ID, Email: user.Email})
	return MsgPasswordResetSuccess, nil
}
