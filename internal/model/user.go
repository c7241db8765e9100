package model

import (
	"time"
)

type User struct {
	ID                  string     `db:"id"`
	Username            string     `db:"username"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	ProfilePic          *string    `db:"profile_pic"` // Stored avatar filename, nil when unset
	ResetToken          *string    `db:"reset_token"` // Pending single-use reset token
	ResetTokenExpiresAt *time.Time `db:"reset_token_expires_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (u *User) HasAvatar() bool {
	return u.ProfilePic != nil && *u.ProfilePic != ""
}

// ResetTokenExpired reports whether the pending reset token is past its deadline.
// Tokens without a deadline never expire.
func (u *User) ResetTokenExpired(now time.Time) bool {
	return u.ResetTokenExpiresAt != nil && !now.Before(*u.ResetTokenExpiresAt)
}

// Public returns the client-safe view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}

// PublicUser is the subset of a user record that is returned to clients.
type PublicUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	ProfilePic *string `json:"profile_pic"`
}

// Identity is the public view without the avatar, as returned by signup and login.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (p PublicUser) Identity() Identity {
	return Identity{ID: p.ID, Username: p.Username, Email: p.Email}
}
