package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
)

type contextKey string

const (
	claimsKey   contextKey = "claims"
	rawTokenKey contextKey = "rawToken"
)

const bearerPrefix = "Bearer "

// Authenticator validates bearer access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeTokenError(w, r, constants.ErrCodeTokenMissing)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			writeTokenError(w, r, constants.ErrCodeTokenMalformed)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		claims, err := m.authenticator.Authenticate(r.Context(), raw)
		if err != nil {
			code := auth.TokenCode(err)
			slog.Debug("bearer token rejected", "path", r.URL.Path, "code", code, "error", err)
			writeTokenError(w, r, code)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, rawTokenKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims returns the claims stored by RequireAuth.
func GetClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func getRawToken(r *http.Request) string {
	raw, _ := r.Context().Value(rawTokenKey).(string)
	return raw
}

// GetUserID returns the numeric subject of the authenticated caller, or 0.
func GetUserID(r *http.Request) int64 {
	claims := GetClaims(r)
	if claims == nil {
		return 0
	}
	id, err := claims.UserID()
	if err != nil {
		return 0
	}
	return id
}

// clientIPMiddleware records the resolved client address for audit events.
func clientIPMiddleware(resolver *ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithClientIP(r.Context(), resolver.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
