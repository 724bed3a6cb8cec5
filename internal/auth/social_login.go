package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/db"
	"gatekeeper/internal/models"
	"gatekeeper/internal/social"
)

// SocialLogin signs a user in with a provider token, linking or creating the
// local account as needed.
func (s *Service) SocialLogin(ctx context.Context, providerName, token string) (*Session, error) {
	provider, ok := models.ParseProvider(providerName)
	if !ok {
		return nil, newError(KindInvalidCredentials,
			fmt.Sprintf("Failed to authenticate with %s: Unsupported provider", providerName),
			"unknown provider", social.ErrUnsupportedProvider)
	}

	fail := func(reason string, err error) (*Session, error) {
		slog.Warn("social login failed", "provider", provider, "reason", reason, "error", err)
		s.publish(ctx, audit.Event{Action: audit.ActionLoginFailed, Provider: string(provider), Detail: reason})
		return nil, newError(KindInvalidCredentials, socialFailureMessage(provider), reason, err)
	}

	if s.social == nil {
		return fail("social login not configured", social.ErrUnsupportedProvider)
	}
	profile, err := s.social.Verify(ctx, provider, token)
	if err != nil {
		return fail("provider verification", err)
	}

	user, err := s.resolveSocialUser(ctx, profile)
	if db.IsUniqueConstraintError(err) {
		// a concurrent login linked the same identity or email first
		user, err = s.resolveSocialUser(ctx, profile)
	}
	if err != nil {
		return fail("linking identity", err)
	}
	if !user.IsActive() {
		return fail("account not active", nil)
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in with provider", "user_id", user.ID, "provider", provider)
	s.publish(ctx, audit.Event{Action: audit.ActionSocialLogin, UserID: user.ID, Email: user.Email, Provider: string(provider)})
	return session, nil
}

// resolveSocialUser finds the user for a verified profile: by linked
// identity first, then by verified email, otherwise a new account is created.
func (s *Service) resolveSocialUser(ctx context.Context, p *social.Profile) (*models.User, error) {
	identity, err := s.identities.FindByProvider(ctx, p.Provider, p.ProviderUserID)
	switch {
	case err == nil:
		applyProfile(identity, p)
		if err := s.identities.UpdateProfile(ctx, identity); err != nil {
			return nil, err
		}
		return s.users.FindByID(ctx, identity.UserID)
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}

	if p.Email == "" {
		return nil, errors.New("provider profile has no email")
	}
	if !p.EmailVerified {
		// an unverified address must not claim or create a local account
		return nil, errors.New("provider email not verified")
	}

	identity = &models.SocialIdentity{
		Provider:       p.Provider,
		ProviderUserID: p.ProviderUserID,
	}
	applyProfile(identity, p)

	user, err := s.users.FindByEmail(ctx, p.Email)
	switch {
	case err == nil:
		identity.UserID = user.ID
		if _, err := s.identities.Create(ctx, identity); err != nil {
			return nil, err
		}
		return user, nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}

	newUser := &models.User{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Status:    models.StatusActive,
	}
	if p.AvatarURL != "" {
		pic := p.AvatarURL
		newUser.ProfilePic = &pic
	}

	user, _, err = s.identities.CreateUserWithIdentity(ctx, newUser, identity)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func applyProfile(si *models.SocialIdentity, p *social.Profile) {
	si.Email = p.Email
	si.DisplayName = p.DisplayName
	si.Verified = p.EmailVerified
	si.TokenExpiresAt = p.ExpiresAt
	if p.AvatarURL != "" {
		avatar := p.AvatarURL
		si.AvatarURL = &avatar
	}
	if p.AccessToken != "" {
		access := p.AccessToken
		si.AccessToken = &access
	}
}
