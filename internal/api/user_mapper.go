package api

import (
	"time"

	"gatekeeper/internal/models"
)

// UserSummary is the public view of an account. It never carries the
// password or refresh token hashes.
type UserSummary struct {
	ID          int64         `json:"id"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Email       string        `json:"email"`
	CountryCode *string       `json:"countryCode"`
	PhoneNumber *string       `json:"phoneNumber"`
	ProfilePic  *string       `json:"profilePic"`
	Status      models.Status `json:"status"`
	LastLogin   *time.Time    `json:"lastLogin"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func userSummaryFromModel(u *models.User) UserSummary {
	return UserSummary{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		CountryCode: u.CountryCode,
		PhoneNumber: u.PhoneNumber,
		ProfilePic:  u.ProfilePic,
		Status:      u.Status,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}
