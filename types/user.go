package types

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an account identified by its mobile number.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Mobile is the 10-digit mobile number. It is unique across users.
	Mobile string `json:"mobile" db:"mobile"`

	// Name is the optional display name.
	Name string `json:"name,omitempty" db:"name"`

	// Role is the user's role. Records created before roles existed may
	// carry an empty role, which is normalized to passenger on load.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// Users that only ever signed in with a one-time code have none.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// OTP is the currently issued one-time code, empty when none is live.
	// It is never exposed in API responses.
	OTP string `json:"-" db:"otp"`

	// OTPExpiresAt is the expiry of OTP.
	OTPExpiresAt *time.Time `json:"-" db:"otp_expires_at"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether a password has been set for the user.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}
