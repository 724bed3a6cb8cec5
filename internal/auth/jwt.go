package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatekeeper/internal/constants"
	"gatekeeper/internal/models"
)

const DefaultResetTokenTTL = 15 * time.Minute

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeReset   TokenType = "reset"
)

type Claims struct {
	Email string    `json:"email,omitempty"`
	Type  TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// RevocationKey is the identifier stored when the token is revoked.
// Tokens without a jti are keyed by their raw form.
func (c *Claims) RevocationKey(raw string) string {
	if c.ID != "" {
		return c.ID
	}
	return raw
}

func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenError carries a diagnostic code for a token that failed verification.
type TokenError struct {
	Code string
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// TokenCode returns the diagnostic code of err, defaulting to TOKEN_VALIDATION_FAILED.
func TokenCode(err error) string {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Code
	}
	return constants.ErrCodeTokenValidationFailed
}

type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL, resetTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, newError(KindConfigurationMissing, "", "jwt secret is not configured", nil)
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}, nil
}

func (s *TokenIssuer) IssueAccess(user *models.User) (string, *Claims, error) {
	return s.IssueWithTTL(user, TokenTypeAccess, s.accessTTL)
}

func (s *TokenIssuer) IssueRefresh(user *models.User) (string, *Claims, error) {
	return s.IssueWithTTL(user, TokenTypeRefresh, s.refreshTTL)
}

func (s *TokenIssuer) IssueReset(user *models.User) (string, *Claims, error) {
	return s.IssueWithTTL(user, TokenTypeReset, s.resetTTL)
}

// IssueWithTTL signs a token of the given type that expires after ttl.
func (s *TokenIssuer) IssueWithTTL(user *models.User, typ TokenType, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email: user.Email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ != TokenTypeReset {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		slog.Error("failed to sign token", "type", typ, "user_id", user.ID, "error", err)
		return "", nil, fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry, not-before and type. Failures are *TokenError.
func (s *TokenIssuer) Parse(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, &TokenError{Code: classifyTokenError(err), Err: err}
	}
	if claims.Type != want {
		return nil, &TokenError{
			Code: constants.ErrCodeTokenValidationFailed,
			Err:  fmt.Errorf("token type %q, want %q", claims.Type, want),
		}
	}
	return claims, nil
}

// ParseIgnoringExpiry verifies only the signature and the token type.
func (s *TokenIssuer) ParseIgnoringExpiry(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, &TokenError{Code: classifyTokenError(err), Err: err}
	}
	if claims.Type != want {
		return nil, &TokenError{
			Code: constants.ErrCodeTokenValidationFailed,
			Err:  fmt.Errorf("token type %q, want %q", claims.Type, want),
		}
	}
	return claims, nil
}

func (s *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

func classifyTokenError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return constants.ErrCodeTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed):
		return constants.ErrCodeTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return constants.ErrCodeTokenNotActive
	default:
		return constants.ErrCodeTokenValidationFailed
	}
}

// HashToken returns the hex SHA-256 digest stored in place of a refresh token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
