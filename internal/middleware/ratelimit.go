package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/ratelimit"
)

// RateLimit enforces the named endpoint's quota. The subject is the
// authenticated user's id; anonymous requests fall back to client IP so
// unauthenticated endpoints still get per-caller limits.
//
// A denied request returns 429 with Retry-After and does not consume
// quota.
func RateLimit(limiter *ratelimit.Limiter, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := getClientIP(r)
			if user := UserFromContext(r.Context()); user != nil {
				subject = fmt.Sprintf("u%d", user.ID)
			}

			decision, err := limiter.CheckAndConsume(r.Context(), subject, endpoint)
			if err != nil {
				// Fail open: availability over strict enforcement
				slog.Error("rate limit check failed, allowing request",
					"error", err,
					"endpoint", endpoint,
					"subject", subject,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				metrics.RateLimitDenialsTotal.WithLabelValues(endpoint).Inc()
				slog.Warn("rate limit exceeded",
					"endpoint", endpoint,
					"subject", subject,
					"reset_at", decision.ResetAt,
				)

				retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.ErrorResponse{
					Error: "Rate limit exceeded, try again later",
					Code:  "RATE_LIMITED",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
