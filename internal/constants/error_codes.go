package constants

const (
	// REST error codes
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountNotActive   = "ACCOUNT_NOT_ACTIVE"
	ErrCodeTokenInvalid       = "TOKEN_INVALID"
	ErrCodeResourceNotFound   = "RESOURCE_NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"

	// Bearer guard diagnostics
	ErrCodeTokenMissing          = "TOKEN_MISSING"
	ErrCodeTokenMalformed        = "TOKEN_MALFORMED"
	ErrCodeTokenExpired          = "TOKEN_EXPIRED"
	ErrCodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	ErrCodeTokenNotActive        = "TOKEN_NOT_ACTIVE"
	ErrCodeTokenValidationFailed = "TOKEN_VALIDATION_FAILED"
)

const (
	MinPasswordLength = 8
	MaxEmailLength    = 254
)
