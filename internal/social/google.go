package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/idtoken"
)

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates Google ID tokens issued for clientID.
type GoogleVerifier struct {
	clientID string
	validate validateFunc
}

func NewGoogleVerifier(clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is not configured")
	}
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	payload, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	firstName, _ := payload.Claims["given_name"].(string)
	lastName, _ := payload.Claims["family_name"].(string)
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	profile := &Profile{
		ProviderUserID: payload.Subject,
		Email:          email,
		EmailVerified:  verified,
		FirstName:      firstName,
		LastName:       lastName,
		DisplayName:    name,
		AvatarURL:      picture,
	}
	if payload.Expires > 0 {
		exp := time.Unix(payload.Expires, 0).UTC()
		profile.ExpiresAt = &exp
	}
	return profile, nil
}
