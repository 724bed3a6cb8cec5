package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"gatekeeper/internal/models"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidToken        = errors.New("invalid provider token")
)

// Profile is the normalized identity a provider vouches for.
type Profile struct {
	Provider       models.Provider
	ProviderUserID string
	Email          string
	EmailVerified  bool
	FirstName      string
	LastName       string
	DisplayName    string
	AvatarURL      string
	AccessToken    string
	ExpiresAt      *time.Time
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Profile, error)
}

// Registry dispatches a provider token to the verifier registered for it.
// The set of providers is fixed at construction.
type Registry struct {
	verifiers map[models.Provider]Verifier
	timeout   time.Duration
	policy    *bluemonday.Policy
}

func NewRegistry(timeout time.Duration, verifiers map[models.Provider]Verifier) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := make(map[models.Provider]Verifier, len(verifiers))
	for p, v := range verifiers {
		if v != nil {
			m[p] = v
		}
	}
	return &Registry{
		verifiers: m,
		timeout:   timeout,
		policy:    bluemonday.StrictPolicy(),
	}
}

func (r *Registry) Supports(provider models.Provider) bool {
	_, ok := r.verifiers[provider]
	return ok
}

// Verify validates token with the provider under the registry timeout and
// returns a sanitized profile.
func (r *Registry) Verify(ctx context.Context, provider models.Provider, token string) (*Profile, error) {
	v, ok := r.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := v.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verifying %s token: %w", provider, err)
	}
	if profile.ProviderUserID == "" {
		return nil, fmt.Errorf("%w: %s profile has no subject", ErrInvalidToken, provider)
	}

	profile.Provider = provider
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.FirstName = r.clean(profile.FirstName)
	profile.LastName = r.clean(profile.LastName)
	profile.DisplayName = r.clean(profile.DisplayName)
	if profile.DisplayName == "" {
		profile.DisplayName = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	}
	return profile, nil
}

func (r *Registry) clean(s string) string {
	return strings.TrimSpace(r.policy.Sanitize(s))
}

// splitName splits a full name on its first space.
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
