package middleware

import (
	"context"
	"net/http"

	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/utils"
)

type contextKey string

const userContextKey contextKey = "user"

// ContextWithUser returns a context carrying the authenticated user.
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil when the
// request was anonymous.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// getClientIP returns the client IP address with default trusted proxy
// settings. Auto mode with RFC1918 + localhost ranges.
func getClientIP(r *http.Request) string {
	return utils.GetClientIPWithTrust(r, "auto", "127.0.0.1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16")
}
