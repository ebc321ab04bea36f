package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rideshare-app/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, mobile, name, role, password_hash, otp, otp_expires_at, created_at, updated_at`

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var otp sql.NullString
	var expires sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Mobile,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&otp,
		&expires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, wrapError(err)
	}
	user.OTP = otp.String
	if expires.Valid {
		t := expires.Time
		user.OTPExpiresAt = &t
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByMobile(ctx context.Context, mobile string) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE mobile = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, mobile))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	if user.ID == "" {
		user.ID = types.NewID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	var otp sql.NullString
	if user.OTP != "" {
		otp = sql.NullString{String: user.OTP, Valid: true}
	}
	var expires sql.NullTime
	if user.OTPExpiresAt != nil {
		expires = sql.NullTime{Time: *user.OTPExpiresAt, Valid: true}
	}

	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Mobile,
		user.Name,
		user.Role,
		user.PasswordHash,
		otp,
		expires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, wrapError(err)
	}
	return user, nil
}

func (r *UserRepository) SetCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET otp = $1,
			otp_expires_at = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, code, expiresAt, time.Now(), id)
	if err != nil {
		return wrapError(err)
	}
	return expectAffected(result, ErrNotFound)
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) error {
	const query = `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, role, time.Now(), id)
	if err != nil {
		return wrapError(err)
	}
	return expectAffected(result, ErrNotFound)
}

// ConsumeCode clears the user's code if it equals code and has not expired
// at now. A non-empty passwordHash is stored in the same write. It returns
// ErrNotFound when no live code matches.
func (r *UserRepository) ConsumeCode(ctx context.Context, id, code string, now time.Time, passwordHash string) error {
	const query = `
		UPDATE users
		SET otp = NULL,
			otp_expires_at = NULL,
			password_hash = CASE WHEN $1::text = '' THEN password_hash ELSE $1 END,
			updated_at = $2
		WHERE id = $3
		  AND otp = $4
		  AND otp_expires_at IS NOT NULL
		  AND otp_expires_at >= $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, now, id, code)
	if err != nil {
		return wrapError(err)
	}
	return expectAffected(result, ErrNotFound)
}
