package models

import (
	"database/sql"
	"time"
)

// User represents a registered account. PasswordHash and RefreshToken are
// never serialized; only the credential manager writes them.
type User struct {
	ID            int            `db:"id" json:"id"`
	FirstName     string         `db:"first_name" json:"first_name"`
	LastName      string         `db:"last_name" json:"last_name"`
	Username      string         `db:"username" json:"username"`
	Email         string         `db:"email" json:"email"`
	PasswordHash  string         `db:"password_hash" json:"-"`
	PhoneNumber   sql.NullString `db:"phone_number" json:"phone_number,omitempty"`
	PhotoURL      sql.NullString `db:"photo_url" json:"photo_url,omitempty"`
	DateOfBirth   sql.NullTime   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	EmailVerified bool           `db:"email_verified" json:"email_verified"`
	RefreshToken  sql.NullString `db:"refresh_token" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Profile is the public projection of a user returned by the API.
type Profile struct {
	ID            int       `db:"id" json:"id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	PhotoURL      *string   `db:"photo_url" json:"photo_url,omitempty"`
	EmailVerified bool      `db:"email_verified" json:"email_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Profile strips credential fields for API responses.
func (u User) Profile() Profile {
	p := Profile{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
	if u.PhotoURL.Valid {
		p.PhotoURL = &u.PhotoURL.String
	}
	return p
}
