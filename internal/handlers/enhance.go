package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nferro/atelier/internal/config"
	"github.com/nferro/atelier/internal/generation"
	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/models"
)

// EnhanceHandler rewrites a rough prompt through the language model.
// The call is bound to the request context: a client that disconnects
// cancels the provider call instead of paying for a result nobody reads.
func EnhanceHandler(cfg *config.Config, enhancer generation.Enhancer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		var req models.EnhanceRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if strings.TrimSpace(req.Prompt) == "" {
			sendError(w, "Prompt is required", "INVALID_PARAMETER", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.EnhanceTimeout)
		defer cancel()

		enhanced, err := enhancer.Enhance(ctx, req.Prompt)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				// Client went away; there is no one to respond to
				metrics.EnhancementsTotal.WithLabelValues("canceled").Inc()
				slog.Debug("enhancement canceled by client", "user_id", user.ID)
			case errors.Is(err, context.DeadlineExceeded):
				metrics.EnhancementsTotal.WithLabelValues("failure").Inc()
				sendError(w, "Enhancement timed out", "ENHANCE_TIMEOUT", http.StatusGatewayTimeout)
			default:
				metrics.EnhancementsTotal.WithLabelValues("failure").Inc()
				slog.Error("enhancement failed", "error", err, "user_id", user.ID)
				sendError(w, "Enhancement failed", "ENHANCE_FAILED", http.StatusBadGateway)
			}
			return
		}

		metrics.EnhancementsTotal.WithLabelValues("success").Inc()
		sendJSON(w, http.StatusOK, models.EnhanceResponse{Prompt: strings.TrimSpace(enhanced)})
	}
}
