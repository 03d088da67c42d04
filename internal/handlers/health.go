package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/storage"
)

const healthCheckTimeout = 5 * time.Second

// setHealthCacheHeaders prevents probe responses from being cached
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthHandler reports database and object-store health. The store
// being unreachable degrades rather than fails the probe: metadata
// still serves and stored URLs still resolve through the CDN.
func HealthHandler(db *sql.DB, store storage.Backend, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("health").Observe(time.Since(start).Seconds())
		}()

		if r.Method != http.MethodGet {
			setHealthCacheHeaders(w)
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := models.HealthResponse{
			Status:        "healthy",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Database:      "ok",
			Storage:       "ok",
		}
		httpCode := http.StatusOK

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check: database unreachable", "error", err)
			resp.Database = "unreachable"
			resp.Status = "unhealthy"
			httpCode = http.StatusServiceUnavailable
		} else if count, err := database.CountImages(db); err != nil {
			slog.Error("health check: image count query failed", "error", err)
			resp.Database = "degraded"
			resp.Status = "degraded"
		} else {
			resp.TotalImages = count
		}

		storeStart := time.Now()
		if err := store.HealthCheck(ctx); err != nil {
			slog.Warn("health check: object store unreachable", "error", err)
			resp.Storage = "unreachable"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
		metrics.HealthCheckDuration.WithLabelValues("storage").Observe(time.Since(storeStart).Seconds())

		switch resp.Status {
		case "healthy":
			metrics.HealthStatus.Set(2)
		case "degraded":
			metrics.HealthStatus.Set(1)
		default:
			metrics.HealthStatus.Set(0)
		}

		setHealthCacheHeaders(w)
		sendJSON(w, httpCode, resp)
	}
}
