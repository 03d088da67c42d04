package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nferro/atelier/internal/auth/sso"
	"github.com/nferro/atelier/internal/config"
	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/utils"
)

// LoginHandler handles password login
func LoginHandler(db *sql.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if req.Username == "" || req.Password == "" {
			slog.Warn("login failed - empty username or password", "username", req.Username)
			time.Sleep(500 * time.Millisecond)
			sendError(w, "Invalid username or password", "INVALID_CREDENTIALS", http.StatusUnauthorized)
			return
		}

		user, err := database.GetUserByUsername(db, req.Username)
		if err != nil {
			slog.Error("failed to get user", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if user == nil || user.PasswordHash == nil || !utils.VerifyPassword(*user.PasswordHash, req.Password) {
			slog.Warn("login failed - invalid credentials", "username", req.Username)
			time.Sleep(500 * time.Millisecond)
			sendError(w, "Invalid username or password", "INVALID_CREDENTIALS", http.StatusUnauthorized)
			return
		}

		if !user.IsActive {
			slog.Warn("login failed - account disabled", "username", req.Username)
			time.Sleep(500 * time.Millisecond)
			sendError(w, "Account has been disabled", "ACCOUNT_DISABLED", http.StatusForbidden)
			return
		}

		session, err := database.CreateUserSession(db, user.ID, time.Duration(cfg.SessionExpiryHours)*time.Hour)
		if err != nil {
			slog.Error("failed to create user session", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		setSessionCookie(w, cfg, session)

		slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
		sendJSON(w, http.StatusOK, user.Profile())
	}
}

// LogoutHandler invalidates the current session
func LogoutHandler(db *sql.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
			if err := database.DeleteUserSession(db, cookie.Value); err != nil {
				slog.Error("failed to delete session", "error", err, "token", utils.MaskToken(cookie.Value))
			}
		}

		clearSessionCookie(w, cfg)
		w.WriteHeader(http.StatusNoContent)
	}
}

// CurrentUserHandler returns the authenticated user's profile
func CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		sendJSON(w, http.StatusOK, user.Profile())
	}
}

// SSOLoginHandler starts the OIDC authorization-code flow
func SSOLoginHandler(provider *sso.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		returnURL := r.URL.Query().Get("return")
		if !isSafeReturnURL(returnURL) {
			returnURL = "/"
		}

		authURL, err := provider.BeginLogin(returnURL)
		if err != nil {
			slog.Error("failed to start SSO login", "error", err)
			sendError(w, "Failed to start login", "SSO_ERROR", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// SSOCallbackHandler completes the OIDC flow: verifies the response,
// provisions the account on first login, and starts a session.
func SSOCallbackHandler(db *sql.DB, cfg *config.Config, provider *sso.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			slog.Warn("SSO provider returned error", "error", errCode, "description", q.Get("error_description"))
			sendError(w, "Login was denied by the identity provider", "SSO_DENIED", http.StatusUnauthorized)
			return
		}

		info, returnURL, err := provider.CompleteLogin(r.Context(), q.Get("code"), q.Get("state"))
		if err != nil {
			slog.Warn("SSO login failed", "error", err)
			sendError(w, "Login failed", "SSO_ERROR", http.StatusUnauthorized)
			return
		}

		user, err := database.GetOrCreateUserBySubject(db, info.Subject, info.Email, info.Name)
		if err != nil {
			slog.Error("failed to provision SSO user", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if !user.IsActive {
			slog.Warn("SSO login blocked - account disabled", "user_id", user.ID)
			sendError(w, "Account has been disabled", "ACCOUNT_DISABLED", http.StatusForbidden)
			return
		}

		session, err := database.CreateUserSession(db, user.ID, time.Duration(cfg.SessionExpiryHours)*time.Hour)
		if err != nil {
			slog.Error("failed to create user session", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		setSessionCookie(w, cfg, session)

		slog.Info("SSO login completed", "user_id", user.ID, "username", user.Username)

		if returnURL == "" {
			returnURL = "/"
		}
		http.Redirect(w, r, returnURL, http.StatusFound)
	}
}

func setSessionCookie(w http.ResponseWriter, cfg *config.Config, session *models.UserSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, cfg *config.Config) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// isSafeReturnURL accepts only same-site relative paths, blocking open
// redirects through the SSO flow.
func isSafeReturnURL(u string) bool {
	return u != "" && strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") && !strings.Contains(u, "\\")
}
