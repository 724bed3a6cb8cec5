package models

import "time"

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

const DefaultRoleName = "user"

type User struct {
	ID               int64      `json:"id"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	Email            string     `json:"email"`
	CountryCode      *string    `json:"countryCode,omitempty"`
	PhoneNumber      *string    `json:"phoneNumber,omitempty"`
	PasswordHash     string     `json:"-"`
	ProfilePic       *string    `json:"profilePic,omitempty"`
	Status           Status     `json:"status"`
	RefreshTokenHash *string    `json:"-"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// HasPassword reports whether the account can sign in with a password.
// Social-only accounts carry an empty hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) StoredRefreshHash() string {
	if u.RefreshTokenHash != nil {
		return *u.RefreshTokenHash
	}
	return ""
}

func (u *User) GetProfilePic() string {
	if u.ProfilePic != nil {
		return *u.ProfilePic
	}
	return ""
}
