package auth

import (
	"fmt"

	"gatekeeper/internal/models"
)

const (
	MsgInvalidCredentials          = "Invalid credentials provided"
	MsgAccountNotActive            = "User account is not active"
	MsgRefreshTokenInvalid         = "Invalid refresh token"
	MsgTokenInvalid                = "Token is invalid or expired"
	MsgUserNotFound                = "User not found"
	MsgCurrentPasswordMismatch     = "Current passwords do not match"
	MsgPasswordResetSuccess        = "Password has been successfully reset"
	MsgResetEmailSent              = "Password reset link has been sent to your email"
	MsgAccessTokenRefreshed        = "Access token refreshed"
	MsgAccessTokenRefreshedRevoked = "Access token refreshed and previous access token revoked"
	MsgLoggedOut                   = "Logged out successfully"
	MsgLoggedOutAll                = "Logged out from all devices successfully"
)

func providerLabel(p models.Provider) string {
	switch p {
	case models.ProviderGoogle:
		return "Google"
	case models.ProviderFacebook:
		return "Facebook"
	default:
		return string(p)
	}
}

func socialFailureMessage(p models.Provider) string {
	return fmt.Sprintf("Failed to authenticate with %s: Invalid %s token", p, providerLabel(p))
}
