package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gatekeeper/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func strPtr(s string) *string { return &s }

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "postgres", DSN: "x"}); err == nil {
		t.Fatal("Open() error = nil, want unsupported driver error")
	}
}

func TestOpenSeedsRoles(t *testing.T) {
	database := openTestDB(t)

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM roles WHERE name IN ('admin', 'user', 'moderator')`).Scan(&count); err != nil {
		t.Fatalf("QueryRow() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("seeded roles = %d, want 3", count)
	}
}

func TestUserRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))

	created, err := users.Create(ctx, &models.User{
		FirstName:    "Bob",
		LastName:     "Builder",
		Email:        "bob@example.com",
		CountryCode:  strPtr("+44"),
		PhoneNumber:  strPtr("7700900123"),
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Create() returned zero ID")
	}
	if created.Status != models.StatusActive {
		t.Fatalf("status = %q, want %q", created.Status, models.StatusActive)
	}

	byEmail, err := users.FindByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if byEmail.ID != created.ID || byEmail.PasswordHash != "hash" {
		t.Fatalf("FindByEmail() = %+v, want ID %d with stored hash", byEmail, created.ID)
	}

	byPhone, err := users.FindByPhone(ctx, "+44", "7700900123")
	if err != nil {
		t.Fatalf("FindByPhone() error = %v", err)
	}
	if byPhone.ID != created.ID {
		t.Fatalf("FindByPhone() ID = %d, want %d", byPhone.ID, created.ID)
	}

	roles, err := users.RoleNames(ctx, created.ID)
	if err != nil {
		t.Fatalf("RoleNames() error = %v", err)
	}
	if len(roles) != 1 || roles[0] != models.DefaultRoleName {
		t.Fatalf("RoleNames() = %v, want [%s]", roles, models.DefaultRoleName)
	}

	if _, err := users.FindByID(ctx, created.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID(missing) error = %v, want %v", err, ErrNotFound)
	}
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))

	if _, err := users.Create(ctx, &models.User{Email: "dup@example.com"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := users.Create(ctx, &models.User{Email: "dup@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create(duplicate) error = %v, want %v", err, ErrDuplicate)
	}
}

func TestUserRepositorySessionLifecycle(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))

	u, err := users.Create(ctx, &models.User{Email: "session@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	loginAt := time.Now().UTC().Truncate(time.Second)
	if err := users.UpdateSession(ctx, u.ID, "abc123", loginAt); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	got, err := users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.StoredRefreshHash() != "abc123" {
		t.Fatalf("refresh hash = %q, want %q", got.StoredRefreshHash(), "abc123")
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(loginAt) {
		t.Fatalf("last login = %v, want %v", got.LastLogin, loginAt)
	}

	if err := users.ClearRefreshToken(ctx, u.ID); err != nil {
		t.Fatalf("ClearRefreshToken() error = %v", err)
	}
	got, err = users.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.RefreshTokenHash != nil {
		t.Fatalf("refresh hash = %q, want nil", *got.RefreshTokenHash)
	}

	if err := users.ClearRefreshToken(ctx, u.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ClearRefreshToken(missing) error = %v, want %v", err, ErrNotFound)
	}
}

func TestSocialIdentityRepositoryCreateUserWithIdentity(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	identities := NewSocialIdentityRepository(database)
	users := NewUserRepository(database)

	user, identity, err := identities.CreateUserWithIdentity(ctx,
		&models.User{FirstName: "Ada", Email: "ada@example.com"},
		&models.SocialIdentity{
			Provider:       models.ProviderGoogle,
			ProviderUserID: "g-1",
			Email:          "ada@example.com",
			DisplayName:    "Ada",
			Verified:       true,
		},
	)
	if err != nil {
		t.Fatalf("CreateUserWithIdentity() error = %v", err)
	}
	if identity.UserID != user.ID {
		t.Fatalf("identity user ID = %d, want %d", identity.UserID, user.ID)
	}

	found, err := identities.FindByProvider(ctx, models.ProviderGoogle, "g-1")
	if err != nil {
		t.Fatalf("FindByProvider() error = %v", err)
	}
	if !found.Verified || found.UserID != user.ID {
		t.Fatalf("FindByProvider() = %+v, want verified identity of user %d", found, user.ID)
	}

	stored, err := users.FindByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if stored.HasPassword() {
		t.Fatal("social sign-up user has a password hash")
	}

	if _, err := identities.FindByProvider(ctx, models.ProviderFacebook, "g-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByProvider(other provider) error = %v, want %v", err, ErrNotFound)
	}
}

func TestSocialIdentityRepositoryRollsBackOnDuplicate(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	identities := NewSocialIdentityRepository(database)
	users := NewUserRepository(database)

	existing, err := users.Create(ctx, &models.User{Email: "first@example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := identities.Create(ctx, &models.SocialIdentity{
		UserID:         existing.ID,
		Provider:       models.ProviderFacebook,
		ProviderUserID: "fb-1",
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, _, err = identities.CreateUserWithIdentity(ctx,
		&models.User{Email: "second@example.com"},
		&models.SocialIdentity{Provider: models.ProviderFacebook, ProviderUserID: "fb-1"},
	)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("CreateUserWithIdentity() error = %v, want %v", err, ErrDuplicate)
	}

	if _, err := users.FindByEmail(ctx, "second@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail() error = %v, want %v (transaction should roll back)", err, ErrNotFound)
	}
}

func TestSocialIdentityRepositoryUpdateProfile(t *testing.T) {
	ctx := context.Background()
	identities := NewSocialIdentityRepository(openTestDB(t))

	_, identity, err := identities.CreateUserWithIdentity(ctx,
		&models.User{Email: "carol@example.com"},
		&models.SocialIdentity{Provider: models.ProviderFacebook, ProviderUserID: "fb-9", DisplayName: "Carol"},
	)
	if err != nil {
		t.Fatalf("CreateUserWithIdentity() error = %v", err)
	}

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	identity.DisplayName = "Carol King"
	identity.AccessToken = strPtr("fb-access")
	identity.TokenExpiresAt = &expires
	if err := identities.UpdateProfile(ctx, identity); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	list, err := identities.ListByUser(ctx, identity.UserID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListByUser() len = %d, want 1", len(list))
	}
	got := list[0]
	if got.DisplayName != "Carol King" || got.AccessToken == nil || *got.AccessToken != "fb-access" {
		t.Fatalf("updated identity = %+v", got)
	}
	if got.TokenExpiresAt == nil || !got.TokenExpiresAt.Equal(expires) {
		t.Fatalf("token expires at = %v, want %v", got.TokenExpiresAt, expires)
	}
}

func TestRevokedTokenRepository(t *testing.T) {
	ctx := context.Background()
	revoked := NewRevokedTokenRepository(openTestDB(t))
	now := time.Now().UTC()

	if err := revoked.Revoke(ctx, "live", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	// duplicate revoke keeps the first expiry
	if err := revoked.Revoke(ctx, "live", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Revoke(duplicate) error = %v", err)
	}
	if err := revoked.Revoke(ctx, "stale", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	tests := []struct {
		id   string
		want bool
	}{
		{id: "live", want: true},
		{id: "stale", want: false},
		{id: "unknown", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := revoked.IsRevoked(ctx, tt.id, now)
			if err != nil {
				t.Fatalf("IsRevoked() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsRevoked(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}

	deleted, err := revoked.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("DeleteExpired() = %d, want 1", deleted)
	}
}

func TestRevokedTokenRepositoryClaim(t *testing.T) {
	ctx := context.Background()
	revoked := NewRevokedTokenRepository(openTestDB(t))
	exp := time.Now().Add(time.Hour)

	first, err := revoked.Claim(ctx, "reset-jti", exp)
	if err != nil || !first {
		t.Fatalf("Claim() = %v, %v, want true, nil", first, err)
	}
	second, err := revoked.Claim(ctx, "reset-jti", exp)
	if err != nil || second {
		t.Fatalf("Claim(again) = %v, %v, want false, nil", second, err)
	}
	if err := revoked.Revoke(ctx, "logged-out", exp); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if claimed, err := revoked.Claim(ctx, "logged-out", exp); err != nil || claimed {
		t.Fatalf("Claim(revoked) = %v, %v, want false, nil", claimed, err)
	}
}

func TestCleanupServiceRemovesExpired(t *testing.T) {
	ctx := context.Background()
	revoked := NewRevokedTokenRepository(openTestDB(t))
	now := time.Now().UTC()

	if err := revoked.Revoke(ctx, "old", now.Add(-time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	svc := NewCleanupService(revoked, 0)
	if svc.interval != DefaultCleanupInterval {
		t.Fatalf("interval = %v, want %v", svc.interval, DefaultCleanupInterval)
	}
	svc.runCleanup(ctx)

	deleted, err := revoked.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 0 {
		t.Fatalf("rows left after cleanup = %d, want 0", deleted)
	}
}
