package models

import "time"

// User is an account record. Subject is the OIDC "sub" claim for accounts
// provisioned through the external auth provider; password accounts have a
// bcrypt hash instead. Either may be empty, never both.
type User struct {
	ID           int64
	Subject      *string
	Username     string
	Email        string
	PasswordHash *string
	DisplayName  string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// UserSession is a server-side session row referenced by an opaque cookie.
type UserSession struct {
	Token        string
	UserID       int64
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}

// Profile is the JSON shape for the current-user endpoint.
type Profile struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile converts a User to its public JSON shape.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
