package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/models"
)

const identityColumns = `id, user_id, provider, provider_user_id, email, display_name, avatar_url,
	access_token, refresh_token, token_expires_at, verified, created_at, updated_at`

type SocialIdentityRepository struct {
	db *DB
}

func NewSocialIdentityRepository(db *DB) *SocialIdentityRepository {
	return &SocialIdentityRepository{db: db}
}

func (r *SocialIdentityRepository) FindByProvider(ctx context.Context, provider models.Provider, providerUserID string) (*models.SocialIdentity, error) {
	si, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM social_identities WHERE provider = ? AND provider_user_id = ?`,
		string(provider), providerUserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying social identity: %w", err)
	}
	return si, nil
}

func (r *SocialIdentityRepository) ListByUser(ctx context.Context, userID int64) ([]*models.SocialIdentity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM social_identities WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying social identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.SocialIdentity
	for rows.Next() {
		si, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning social identity: %w", err)
		}
		identities = append(identities, si)
	}
	return identities, rows.Err()
}

// Create attaches a new identity to an existing user.
func (r *SocialIdentityRepository) Create(ctx context.Context, si *models.SocialIdentity) (*models.SocialIdentity, error) {
	return insertIdentity(ctx, r.db, si)
}

// CreateUserWithIdentity creates a user, its default role and the identity atomically.
func (r *SocialIdentityRepository) CreateUserWithIdentity(ctx context.Context, u *models.User, si *models.SocialIdentity) (*models.User, *models.SocialIdentity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("starting social sign-up transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := insertUser(ctx, tx, u)
	if err != nil {
		return nil, nil, err
	}

	linked := *si
	linked.UserID = user.ID
	identity, err := insertIdentity(ctx, tx, &linked)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing social sign-up: %w", err)
	}
	return user, identity, nil
}

// UpdateProfile refreshes the cached provider profile and token fields.
func (r *SocialIdentityRepository) UpdateProfile(ctx context.Context, si *models.SocialIdentity) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE social_identities
		    SET email = ?, display_name = ?, avatar_url = ?, access_token = ?, refresh_token = ?,
		        token_expires_at = ?, verified = ?, updated_at = ?
		  WHERE id = ?`,
		si.Email, si.DisplayName, si.AvatarURL, si.AccessToken, si.RefreshToken,
		timePtrToNull(si.TokenExpiresAt), si.Verified, time.Now().UTC(), si.ID,
	)
	if err != nil {
		return fmt.Errorf("updating social identity: %w", err)
	}
	return checkRowsAffected(result)
}

func insertIdentity(ctx context.Context, q queryer, si *models.SocialIdentity) (*models.SocialIdentity, error) {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO social_identities (user_id, provider, provider_user_id, email, display_name, avatar_url,
		    access_token, refresh_token, token_expires_at, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		si.UserID, string(si.Provider), si.ProviderUserID, si.Email, si.DisplayName, si.AvatarURL,
		si.AccessToken, si.RefreshToken, timePtrToNull(si.TokenExpiresAt), si.Verified, now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating social identity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading social identity ID: %w", err)
	}

	created := *si
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func scanIdentity(row rowScanner) (*models.SocialIdentity, error) {
	var (
		si           models.SocialIdentity
		provider     string
		avatarURL    sql.NullString
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := row.Scan(
		&si.ID,
		&si.UserID,
		&provider,
		&si.ProviderUserID,
		&si.Email,
		&si.DisplayName,
		&avatarURL,
		&accessToken,
		&refreshToken,
		&expiresAt,
		&si.Verified,
		&si.CreatedAt,
		&si.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	si.Provider = models.Provider(provider)
	si.AvatarURL = nullStringToPtr(avatarURL)
	si.AccessToken = nullStringToPtr(accessToken)
	si.RefreshToken = nullStringToPtr(refreshToken)
	si.TokenExpiresAt = nullTimeToPtr(expiresAt)
	return &si, nil
}
