package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type RevokedTokenRepository struct {
	db *DB
}

func NewRevokedTokenRepository(db *DB) *RevokedTokenRepository {
	return &RevokedTokenRepository{db: db}
}

// Revoke records id as revoked until expiresAt. Revoking an id twice is a no-op.
func (r *RevokedTokenRepository) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.db.insertIgnore()+` INTO revoked_tokens (id, expires_at, created_at) VALUES (?, ?, ?)`,
		id, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// Claim records id like Revoke but reports whether this call inserted the
// row. False means id was already revoked.
func (r *RevokedTokenRepository) Claim(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		r.db.insertIgnore()+` INTO revoked_tokens (id, expires_at, created_at) VALUES (?, ?, ?)`,
		id, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("claiming token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming token: %w", err)
	}
	return n > 0, nil
}

// IsRevoked reports whether a revocation for id exists that is still in force at now.
func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, id string, now time.Time) (bool, error) {
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT expires_at FROM revoked_tokens WHERE id = ?`,
		id,
	).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying revoked token: %w", err)
	}
	return expiresAt.After(now), nil
}

func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired revoked tokens: %w", err)
	}
	return result.RowsAffected()
}
