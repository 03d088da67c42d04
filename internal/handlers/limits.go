package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/ratelimit"
)

// LimitsHandler reports the caller's remaining quota per endpoint.
// Reading status never consumes quota.
func LimitsHandler(limiter *ratelimit.Limiter) http.HandlerFunc {
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
		subject := fmt.Sprintf("u%d", user.ID)

		rules := limiter.Rules()
		endpoints := make([]string, 0, len(rules))
		for endpoint := range rules {
			endpoints = append(endpoints, endpoint)
		}
		sort.Strings(endpoints)

		statuses := make([]models.LimitStatus, 0, len(endpoints))
		for _, endpoint := range endpoints {
			decision, err := limiter.Status(r.Context(), subject, endpoint)
			if err != nil {
				slog.Error("failed to read rate limit status", "error", err, "endpoint", endpoint)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			statuses = append(statuses, models.LimitStatus{
				Endpoint:  endpoint,
				Limit:     rules[endpoint].Max,
				Remaining: decision.Remaining,
				ResetAt:   decision.ResetAt,
			})
		}

		sendJSON(w, http.StatusOK, map[string]any{"limits": statuses})
	}
}
