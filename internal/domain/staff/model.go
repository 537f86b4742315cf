package staff

import (
	"time"

	"github.com/google/uuid"
)

// User is a clinic staff member. Role is one of the auth.Role* values.
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"full_name"`
	Role          string    `db:"role" json:"role"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	Specialty     *string   `db:"specialty" json:"specialty,omitempty"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// LoginResult is returned by Authenticate.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
