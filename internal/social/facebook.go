package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const DefaultFacebookGraphURL = "https://graph.facebook.com/me"

type facebookPicture struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

type facebookProfile struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Picture facebookPicture `json:"picture"`
}

// FacebookVerifier resolves a user access token against the Graph API.
type FacebookVerifier struct {
	graphURL string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
}

func NewFacebookVerifier(graphURL string, client *http.Client) *FacebookVerifier {
	if graphURL == "" {
		graphURL = DefaultFacebookGraphURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	st := gobreaker.Settings{
		Name:        "facebook-graph",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// rejected tokens are the caller's fault, not the provider's
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidToken)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state", "component", "social", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &FacebookVerifier{
		graphURL: graphURL,
		client:   client,
		cb:       gobreaker.NewCircuitBreaker(st),
	}
}

func (f *FacebookVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	result, err := f.cb.Execute(func() (interface{}, error) {
		return f.fetch(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	fb := result.(*facebookProfile)
	first, last := splitName(fb.Name)
	return &Profile{
		ProviderUserID: fb.ID,
		Email:          fb.Email,
		EmailVerified:  fb.Email != "",
		FirstName:      first,
		LastName:       last,
		DisplayName:    fb.Name,
		AvatarURL:      fb.Picture.Data.URL,
		AccessToken:    token,
	}, nil
}

func (f *FacebookVerifier) fetch(ctx context.Context, token string) (*facebookProfile, error) {
	u, err := url.Parse(f.graphURL)
	if err != nil {
		return nil, fmt.Errorf("parsing graph url: %w", err)
	}
	q := u.Query()
	q.Set("fields", "id,name,email,picture")
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building graph request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling graph api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading graph response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("graph api returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: graph api returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var profile facebookProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decoding graph response: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: graph response has no id", ErrInvalidToken)
	}
	return &profile, nil
}
