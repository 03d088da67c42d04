package utils

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/ratelimit"
)

// StartCleanupWorker starts a background goroutine that periodically
// purges expired sessions, consumed SSO state, and stale rate limit
// windows. It returns when ctx is canceled.
func StartCleanupWorker(ctx context.Context, db *sql.DB, limiter *ratelimit.Limiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("cleanup worker started", "interval", interval)

	// Run once on start
	runCleanup(ctx, db, limiter)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker shutting down")
			return
		case <-ticker.C:
			runCleanup(ctx, db, limiter)
		}
	}
}

func runCleanup(ctx context.Context, db *sql.DB, limiter *ratelimit.Limiter) {
	start := time.Now()

	sessions, err := database.CleanupExpiredSessions(db)
	if err != nil {
		slog.Error("session cleanup failed", "error", err)
	}

	states, err := database.CleanupExpiredSSOStates(db)
	if err != nil {
		slog.Error("sso state cleanup failed", "error", err)
	}

	var windows int64
	if limiter != nil {
		windows, err = limiter.Cleanup(ctx)
		if err != nil {
			slog.Error("rate limit cleanup failed", "error", err)
		}
	}

	if sessions > 0 || states > 0 || windows > 0 {
		slog.Info("cleanup completed",
			"sessions", sessions,
			"sso_states", states,
			"rate_limit_windows", windows,
			"duration", time.Since(start),
		)
	}
}
