package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/models"
)

const userColumns = `id, first_name, last_name, email, country_code, phone_number, password,
	profile_pic, status, refresh_token, last_login, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and assigns the default role in one transaction.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting user creation transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := insertUser(ctx, tx, u)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user creation: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) FindByPhone(ctx context.Context, countryCode, phoneNumber string) (*models.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE country_code = ? AND phone_number = ?`,
		countryCode, phoneNumber,
	)
}

// UpdateSession stores the hash of the user's single trusted refresh token.
func (r *UserRepository) UpdateSession(ctx context.Context, id int64, refreshHash string, lastLogin time.Time) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = ?, last_login = ?, updated_at = ? WHERE id = ?`,
		refreshHash, lastLogin.UTC(), now, id,
	)
	if err != nil {
		return fmt.Errorf("updating user session: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) RoleNames(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name FROM roles r JOIN user_roles ur ON ur.role_id = r.id WHERE ur.user_id = ? ORDER BY r.name`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying user roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u           models.User
		status      string
		countryCode sql.NullString
		phoneNumber sql.NullString
		profilePic  sql.NullString
		refresh     sql.NullString
		lastLogin   sql.NullTime
		updatedAt   sql.NullTime
	)

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&countryCode,
		&phoneNumber,
		&u.PasswordHash,
		&profilePic,
		&status,
		&refresh,
		&lastLogin,
		&u.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Status = models.Status(status)
	u.CountryCode = nullStringToPtr(countryCode)
	u.PhoneNumber = nullStringToPtr(phoneNumber)
	u.ProfilePic = nullStringToPtr(profilePic)
	u.RefreshTokenHash = nullStringToPtr(refresh)
	u.LastLogin = nullTimeToPtr(lastLogin)
	u.UpdatedAt = nullTimeToPtr(updatedAt)
	return &u, nil
}

func insertUser(ctx context.Context, q queryer, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	status := u.Status
	if status == "" {
		status = models.StatusActive
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO users (first_name, last_name, email, country_code, phone_number, password, profile_pic, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.Email, u.CountryCode, u.PhoneNumber, u.PasswordHash, u.ProfilePic, string(status), now, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user ID: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name = ?`,
		id, models.DefaultRoleName,
	); err != nil {
		return nil, fmt.Errorf("assigning default role: %w", err)
	}

	created := *u
	created.ID = id
	created.Status = status
	created.CreatedAt = now
	created.UpdatedAt = &now
	return &created, nil
}
