package revocation

import (
	"context"
	"log/slog"
	"time"
)

// Store persists revoked token identifiers.
type Store interface {
	Revoke(ctx context.Context, id string, expiresAt time.Time) error
	Claim(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, id string, now time.Time) (bool, error)
}

// Cache is an optional fast path in front of the Store.
type Cache interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	// IsRevoked returns found=true only for a cached revocation. A miss
	// is reported as found=false so the Store is consulted.
	IsRevoked(ctx context.Context, id string) (revoked, found bool, err error)
}

// Service answers revocation lookups. Store failures never reach callers:
// a failed lookup reports the token as not revoked.
type Service struct {
	store Store
	cache Cache
	now   func() time.Time
}

func NewService(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache, now: time.Now}
}

// Revoke records id as revoked until expiresAt. Ids that have already
// expired are skipped.
func (s *Service) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	if id == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.store.Revoke(ctx, id, expiresAt); err != nil {
		return err
	}

	s.cacheRevocation(ctx, id, ttl)
	return nil
}

// Claim revokes id and reports whether this caller was the first to do so.
// Single-use tokens are accepted only when Claim returns true. Unlike
// lookups, a store failure is returned to the caller.
func (s *Service) Claim(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	if id == "" {
		return false, nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, nil
	}

	claimed, err := s.store.Claim(ctx, id, expiresAt)
	if err != nil {
		return false, err
	}
	s.cacheRevocation(ctx, id, ttl)
	return claimed, nil
}

func (s *Service) cacheRevocation(ctx context.Context, id string, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Revoke(ctx, id, ttl); err != nil {
		slog.Warn("failed to cache revocation", "component", "revocation", "error", err)
	}
}

func (s *Service) IsRevoked(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}

	if s.cache != nil {
		revoked, found, err := s.cache.IsRevoked(ctx, id)
		if err != nil {
			slog.Warn("revocation cache lookup failed", "component", "revocation", "error", err)
		} else if found {
			return revoked
		}
	}

	revoked, err := s.store.IsRevoked(ctx, id, s.now())
	if err != nil {
		slog.Error("revocation lookup failed", "component", "revocation", "error", err)
		return false
	}
	return revoked
}
