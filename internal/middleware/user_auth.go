package middleware

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/nferro/atelier/internal/database"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "atelier_session"

// UserAuth middleware requires a valid user session
func UserAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				slog.Warn("user authentication failed - no session cookie",
					"path", r.URL.Path,
					"ip", getClientIP(r),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			session, err := database.GetUserSession(db, cookie.Value)
			if err != nil {
				slog.Error("failed to validate user session",
					"error", err,
					"ip", getClientIP(r),
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if session == nil {
				slog.Warn("user authentication failed - invalid session token",
					"path", r.URL.Path,
					"ip", getClientIP(r),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := database.GetUserByID(db, session.UserID)
			if err != nil {
				slog.Error("failed to get user",
					"error", err,
					"user_id", session.UserID,
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if user == nil {
				slog.Warn("user authentication failed - user not found",
					"user_id", session.UserID,
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !user.IsActive {
				slog.Warn("user authentication failed - account disabled",
					"user_id", user.ID,
					"username", user.Username,
				)
				http.Error(w, "Account has been disabled", http.StatusForbidden)
				return
			}

			if err := database.UpdateUserSessionActivity(db, cookie.Value); err != nil {
				// Don't fail the request, just log the error
				slog.Error("failed to update user session activity", "error", err)
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// OptionalUserAuth checks for a user session but doesn't require one.
// A valid session puts the user in the request context; anything else
// continues anonymously.
func OptionalUserAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			session, err := database.GetUserSession(db, cookie.Value)
			if err != nil || session == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := database.GetUserByID(db, session.UserID)
			if err != nil || user == nil || !user.IsActive {
				next.ServeHTTP(w, r)
				return
			}

			database.UpdateUserSessionActivity(db, cookie.Value)

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}
