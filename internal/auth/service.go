package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/db"
	"gatekeeper/internal/models"
	"gatekeeper/internal/social"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateSession(ctx context.Context, id int64, refreshHash string, lastLogin time.Time) error
	ClearRefreshToken(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type IdentityStore interface {
	FindByProvider(ctx context.Context, provider models.Provider, providerUserID string) (*models.SocialIdentity, error)
	Create(ctx context.Context, si *models.SocialIdentity) (*models.SocialIdentity, error)
	UpdateProfile(ctx context.Context, si *models.SocialIdentity) error
	CreateUserWithIdentity(ctx context.Context, u *models.User, si *models.SocialIdentity) (*models.User, *models.SocialIdentity, error)
}

type Revoker interface {
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
	Claim(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, id string) bool
}

type ProfileVerifier interface {
	Verify(ctx context.Context, provider models.Provider, token string) (*social.Profile, error)
}

type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error
}

type Dependencies struct {
	Users       UserStore
	Identities  IdentityStore
	Tokens      *TokenIssuer
	Passwords   *PasswordHasher
	Revocations Revoker
	Social      ProfileVerifier
	Audit       audit.Sink
	Mailer      ResetMailer
}

type Service struct {
	users       UserStore
	identities  IdentityStore
	tokens      *TokenIssuer
	passwords   *PasswordHasher
	revocations Revoker
	social      ProfileVerifier
	audit       audit.Sink
	mailer      ResetMailer
	now         func() time.Time
}

func NewService(deps Dependencies) *Service {
	if deps.Audit == nil {
		deps.Audit = audit.NopSink{}
	}
	if deps.Passwords == nil {
		deps.Passwords = NewPasswordHasher(0, 0)
	}
	return &Service{
		users:       deps.Users,
		identities:  deps.Identities,
		tokens:      deps.Tokens,
		passwords:   deps.Passwords,
		revocations: deps.Revocations,
		social:      deps.Social,
		audit:       deps.Audit,
		mailer:      deps.Mailer,
		now:         time.Now,
	}
}

type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message"`
}

// VerifyCredentials checks an email/password pair. Inactive accounts are
// rejected before the password is looked at.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, newError(KindInvalidCredentials, MsgInvalidCredentials, "unknown email", nil)
		}
		return nil, internalError("looking up user", err)
	}

	if !user.IsActive() {
		return nil, newError(KindAccountNotActive, MsgAccountNotActive, "status "+string(user.Status), nil)
	}

	ok, err := s.passwords.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, internalError("comparing password", err)
	}
	if !ok {
		return nil, newError(KindInvalidCredentials, MsgInvalidCredentials, "password mismatch", ErrPasswordMismatch)
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		s.publish(ctx, audit.Event{Action: audit.ActionLoginFailed, Email: email, Detail: KindOf(err).String()})
		return nil, err
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", "user_id", user.ID)
	s.publish(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, Email: user.Email})
	return session, nil
}

// startSession issues an access/refresh pair and makes the new refresh token
// the only one trusted for the user.
func (s *Service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	access, _, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, internalError("issuing access token", err)
	}
	refresh, _, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, internalError("issuing refresh token", err)
	}

	now := s.now().UTC()
	hash := HashToken(refresh)
	if err := s.users.UpdateSession(ctx, user.ID, hash, now); err != nil {
		return nil, internalError("storing session", err)
	}

	u := *user
	u.LastLogin = &now
	u.RefreshTokenHash = &hash

	return &Session{User: &u, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges the user's current refresh token for a new access token.
// When oldAccessToken belongs to the same user it is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken, oldAccessToken string) (*RefreshResult, error) {
	reject := func(reason string, err error) (*RefreshResult, error) {
		slog.Info("refresh rejected", "reason", reason, "error", err)
		return nil, newError(KindTokenInvalid, MsgRefreshTokenInvalid, reason, err)
	}

	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return reject(TokenCode(err), err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return reject("bad subject", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return reject("unknown user", nil)
		}
		return nil, internalError("looking up user", err)
	}

	stored := user.StoredRefreshHash()
	presented := HashToken(refreshToken)
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return reject("refresh token mismatch", nil)
	}

	message := MsgAccessTokenRefreshed
	if oldAccessToken != "" && s.retireAccessToken(ctx, oldAccessToken, claims.Subject) {
		message = MsgAccessTokenRefreshedRevoked
	}

	access, _, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, internalError("issuing access token", err)
	}

	s.publish(ctx, audit.Event{Action: audit.ActionRefresh, UserID: user.ID, Email: user.Email})
	return &RefreshResult{AccessToken: access, Message: message}, nil
}

func (s *Service) retireAccessToken(ctx context.Context, raw, subject string) bool {
	old, err := s.tokens.ParseIgnoringExpiry(raw, TokenTypeAccess)
	if err != nil {
		slog.Info("old access token not revoked", "reason", TokenCode(err))
		return false
	}
	if old.Subject != subject {
		slog.Warn("old access token belongs to another user", "user_id", subject)
		return false
	}
	if err := s.revocations.Revoke(ctx, old.RevocationKey(raw), old.Expiry()); err != nil {
		slog.Error("failed to revoke old access token", "user_id", subject, "error", err)
		return false
	}
	return true
}

// Authenticate validates a bearer access token. Failures are *TokenError.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.tokens.Parse(raw, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if s.revocations.IsRevoked(ctx, claims.RevocationKey(raw)) {
		return nil, &TokenError{Code: constants.ErrCodeTokenValidationFailed, Err: errors.New("token revoked")}
	}
	return claims, nil
}

// Logout revokes the token that authenticated the request. It always
// reports success; storage failures are only logged.
func (s *Service) Logout(ctx context.Context, raw string, claims *Claims) string {
	if err := s.revocations.Revoke(ctx, claims.RevocationKey(raw), claims.Expiry()); err != nil {
		slog.Error("failed to revoke token on logout", "user_id", claims.Subject, "error", err)
	}

	userID, _ := claims.UserID()
	s.publish(ctx, audit.Event{Action: audit.ActionLogout, UserID: userID, Email: claims.Email})
	return MsgLoggedOut
}

// LogoutAll forgets the stored refresh token. Access tokens already issued
// stay valid until they expire.
func (s *Service) LogoutAll(ctx context.Context, userID int64) (string, error) {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", newError(KindResourceNotFound, MsgUserNotFound, "", err)
		}
		return "", internalError("clearing refresh token", err)
	}

	s.publish(ctx, audit.Event{Action: audit.ActionLogoutAll, UserID: userID})
	return MsgLoggedOutAll, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, newError(KindResourceNotFound, MsgUserNotFound, "", err)
		}
		return nil, internalError("looking up user", err)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, event audit.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if event.IP == "" {
		event.IP = audit.ClientIP(ctx)
	}
	s.audit.Publish(ctx, event)
}
