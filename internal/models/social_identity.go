package models

import (
	"strings"
	"time"
)

type Provider string

const (
	ProviderGoogle   Provider = "GOOGLE"
	ProviderFacebook Provider = "FACEBOOK"
)

// ParseProvider accepts any casing of a known provider name.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderGoogle:
		return ProviderGoogle, true
	case ProviderFacebook:
		return ProviderFacebook, true
	}
	return "", false
}

// SocialIdentity links a local user to one external provider account.
type SocialIdentity struct {
	ID             int64
	UserID         int64
	Provider       Provider
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      *string
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	Verified       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
