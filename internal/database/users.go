package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/nferro/atelier/internal/models"
)

// CreateUser creates a password-based account.
func CreateUser(db *sql.DB, username, email, passwordHash, displayName string) (*models.User, error) {
	now := time.Now().UTC()
	result, err := db.Exec(
		`INSERT INTO users (username, email, password_hash, display_name, is_active, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		username, email, passwordHash, displayName, millis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: &passwordHash,
		DisplayName:  displayName,
		IsActive:     true,
		CreatedAt:    now,
	}, nil
}

const userColumns = `id, subject, username, email, password_hash, display_name, is_active, created_at, last_login`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var subject, passwordHash sql.NullString
	var createdAt int64
	var lastLogin sql.NullInt64

	err := row.Scan(
		&user.ID,
		&subject,
		&user.Username,
		&user.Email,
		&passwordHash,
		&user.DisplayName,
		&user.IsActive,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}

	if subject.Valid {
		user.Subject = &subject.String
	}
	if passwordHash.Valid {
		user.PasswordHash = &passwordHash.String
	}
	user.CreatedAt = fromMillis(createdAt)
	if lastLogin.Valid {
		t := fromMillis(lastLogin.Int64)
		user.LastLogin = &t
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username. Returns nil if not found.
func GetUserByUsername(db *sql.DB, username string) (*models.User, error) {
	user, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id. Returns nil if not found.
func GetUserByID(db *sql.DB, id int64) (*models.User, error) {
	user, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreateUserBySubject resolves an OIDC identity to a local profile,
// provisioning one on first login. The username is derived from the email
// local part, with a numeric suffix on collision.
func GetOrCreateUserBySubject(db *sql.DB, subject, email, displayName string) (*models.User, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject cannot be empty")
	}

	user, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE subject = ?`, subject))
	if err == nil {
		touchLastLogin(db, user.ID)
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up user by subject: %w", err)
	}

	base := usernameFromEmail(email)
	now := time.Now().UTC()

	for attempt := 0; attempt < 10; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", base, attempt)
		}

		result, err := db.Exec(
			`INSERT INTO users (subject, username, email, display_name, is_active, created_at, last_login)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			subject, username, email, displayName, millis(now), millis(now),
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
				continue
			}
			return nil, fmt.Errorf("failed to provision user: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get user id: %w", err)
		}

		return &models.User{
			ID:          id,
			Subject:     &subject,
			Username:    username,
			Email:       email,
			DisplayName: displayName,
			IsActive:    true,
			CreatedAt:   now,
			LastLogin:   &now,
		}, nil
	}

	return nil, fmt.Errorf("failed to find a free username for %q", base)
}

func usernameFromEmail(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

func touchLastLogin(db *sql.DB, userID int64) {
	db.Exec(`UPDATE users SET last_login = ? WHERE id = ?`, millis(time.Now().UTC()), userID)
}

// CreateUserSession creates a session row with a random opaque token.
func CreateUserSession(db *sql.DB, userID int64, expiry time.Duration) (*models.UserSession, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := time.Now().UTC()
	session := &models.UserSession{
		Token:        token,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiry),
		LastActivity: now,
	}

	_, err := db.Exec(
		`INSERT INTO user_sessions (token, user_id, created_at, expires_at, last_activity)
		 VALUES (?, ?, ?, ?, ?)`,
		session.Token, session.UserID, millis(session.CreatedAt),
		millis(session.ExpiresAt), millis(session.LastActivity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetUserSession validates a session token. Returns nil for missing or
// expired sessions.
func GetUserSession(db *sql.DB, token string) (*models.UserSession, error) {
	var session models.UserSession
	var createdAt, expiresAt, lastActivity int64

	err := db.QueryRow(
		`SELECT token, user_id, created_at, expires_at, last_activity
		 FROM user_sessions WHERE token = ?`, token,
	).Scan(&session.Token, &session.UserID, &createdAt, &expiresAt, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	session.LastActivity = fromMillis(lastActivity)

	if time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	return &session, nil
}

// UpdateUserSessionActivity bumps last_activity for an active session.
func UpdateUserSessionActivity(db *sql.DB, token string) error {
	_, err := db.Exec(
		`UPDATE user_sessions SET last_activity = ? WHERE token = ?`,
		millis(time.Now().UTC()), token,
	)
	if err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return nil
}

// DeleteUserSession removes a session (logout).
func DeleteUserSession(db *sql.DB, token string) error {
	if _, err := db.Exec(`DELETE FROM user_sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes all expired session rows.
func CleanupExpiredSessions(db *sql.DB) (int64, error) {
	result, err := db.Exec(`DELETE FROM user_sessions WHERE expires_at < ?`, millis(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return result.RowsAffected()
}

// CreateSSOState stores a state+nonce pair for an in-flight OIDC login.
func CreateSSOState(db *sql.DB, state, nonce, returnURL string, ttl time.Duration) error {
	_, err := db.Exec(
		`INSERT INTO sso_states (state, nonce, return_url, expires_at) VALUES (?, ?, ?, ?)`,
		state, nonce, returnURL, millis(time.Now().UTC().Add(ttl)),
	)
	if err != nil {
		return fmt.Errorf("failed to store sso state: %w", err)
	}
	return nil
}

// ConsumeSSOState retrieves and deletes a state row, enforcing single use.
// Returns ErrNotFound for unknown or expired states.
func ConsumeSSOState(db *sql.DB, state string) (nonce, returnURL string, err error) {
	var expiresAt int64
	err = db.QueryRow(
		`SELECT nonce, return_url, expires_at FROM sso_states WHERE state = ?`, state,
	).Scan(&nonce, &returnURL, &expiresAt)
	if err == sql.ErrNoRows {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to query sso state: %w", err)
	}

	if _, err := db.Exec(`DELETE FROM sso_states WHERE state = ?`, state); err != nil {
		return "", "", fmt.Errorf("failed to consume sso state: %w", err)
	}

	if time.Now().After(fromMillis(expiresAt)) {
		return "", "", ErrNotFound
	}
	return nonce, returnURL, nil
}

// CleanupExpiredSSOStates removes stale in-flight login states.
func CleanupExpiredSSOStates(db *sql.DB) (int64, error) {
	result, err := db.Exec(`DELETE FROM sso_states WHERE expires_at < ?`, millis(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sso states: %w", err)
	}
	return result.RowsAffected()
}
