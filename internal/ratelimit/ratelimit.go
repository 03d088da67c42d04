// Package ratelimit implements a fixed-size sliding-window rate limiter
// backed by rows in the rate_limits table, keyed by endpoint and user.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Rule is the limit for one logical endpoint.
type Rule struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and consumes per-(user, endpoint) request budgets.
// Check-then-write runs inside a single transaction, so concurrent
// requests against the same key serialize on the database rather than
// racing at the application level.
type Limiter struct {
	db    *sql.DB
	rules map[string]Rule
}

// New creates a limiter with the given per-endpoint rules.
func New(db *sql.DB, rules map[string]Rule) (*Limiter, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rate limit rule is required")
	}
	for endpoint, rule := range rules {
		if rule.Max <= 0 {
			return nil, fmt.Errorf("rule %q: max must be positive, got %d", endpoint, rule.Max)
		}
		if rule.Window <= 0 {
			return nil, fmt.Errorf("rule %q: window must be positive, got %s", endpoint, rule.Window)
		}
	}
	return &Limiter{db: db, rules: rules}, nil
}

// Rules returns the configured endpoint rules.
func (l *Limiter) Rules() map[string]Rule {
	return l.rules
}

func limitKey(endpoint, user string) string {
	return endpoint + ":" + user
}

// CheckAndConsume checks the caller's budget for an endpoint and, when
// allowed, consumes one request. A denied request is not counted.
//
//   - no record, or the window has elapsed: fresh window, count=1, allowed
//   - at the limit: denied, remaining 0, reset at windowStart+window
//   - otherwise: incremented and allowed
func (l *Limiter) CheckAndConsume(ctx context.Context, user, endpoint string) (Decision, error) {
	rule, ok := l.rules[endpoint]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit rule for endpoint %q", endpoint)
	}
	if user == "" {
		return Decision{}, fmt.Errorf("user key cannot be empty")
	}

	key := limitKey(endpoint, user)
	now := time.Now().UTC()
	nowMs := now.UnixMilli()
	windowMs := rule.Window.Milliseconds()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	var windowStart int64
	err = tx.QueryRowContext(ctx,
		`SELECT request_count, window_start FROM rate_limits WHERE key = ?`, key,
	).Scan(&count, &windowStart)

	switch {
	case err == sql.ErrNoRows || (err == nil && nowMs-windowStart >= windowMs):
		// Fresh window: first request in it is always allowed.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rate_limits (key, endpoint, request_count, window_start, updated_at)
			 VALUES (?, ?, 1, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET request_count = 1, window_start = excluded.window_start, updated_at = excluded.updated_at`,
			key, endpoint, nowMs, nowMs,
		)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to start rate limit window: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Decision{}, fmt.Errorf("failed to commit rate limit: %w", err)
		}
		return Decision{
			Allowed:   true,
			Remaining: rule.Max - 1,
			ResetAt:   time.UnixMilli(nowMs + windowMs).UTC(),
		}, nil

	case err != nil:
		return Decision{}, fmt.Errorf("failed to query rate limit: %w", err)

	case count >= rule.Max:
		// Denied requests do not consume budget.
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   time.UnixMilli(windowStart + windowMs).UTC(),
		}, nil

	default:
		newCount := count + 1
		_, err = tx.ExecContext(ctx,
			`UPDATE rate_limits SET request_count = ?, updated_at = ? WHERE key = ?`,
			newCount, nowMs, key,
		)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to increment rate limit: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Decision{}, fmt.Errorf("failed to commit rate limit: %w", err)
		}
		return Decision{
			Allowed:   true,
			Remaining: rule.Max - newCount,
			ResetAt:   time.UnixMilli(windowStart + windowMs).UTC(),
		}, nil
	}
}

// Status recomputes the window state without consuming a request or
// writing anything.
func (l *Limiter) Status(ctx context.Context, user, endpoint string) (Decision, error) {
	rule, ok := l.rules[endpoint]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit rule for endpoint %q", endpoint)
	}

	now := time.Now().UTC()
	nowMs := now.UnixMilli()
	windowMs := rule.Window.Milliseconds()

	var count int
	var windowStart int64
	err := l.db.QueryRowContext(ctx,
		`SELECT request_count, window_start FROM rate_limits WHERE key = ?`,
		limitKey(endpoint, user),
	).Scan(&count, &windowStart)
	if err == sql.ErrNoRows || (err == nil && nowMs-windowStart >= windowMs) {
		return Decision{
			Allowed:   true,
			Remaining: rule.Max,
			ResetAt:   time.UnixMilli(nowMs + windowMs).UTC(),
		}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to query rate limit status: %w", err)
	}

	remaining := rule.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(windowStart + windowMs).UTC(),
	}, nil
}

// Cleanup deletes records whose window started more than twice the longest
// configured window ago. Meant for periodic invocation.
func (l *Limiter) Cleanup(ctx context.Context) (int64, error) {
	var longest time.Duration
	for _, rule := range l.rules {
		if rule.Window > longest {
			longest = rule.Window
		}
	}

	cutoff := time.Now().UTC().Add(-2 * longest).UnixMilli()
	result, err := l.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE window_start < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if removed > 0 {
		slog.Debug("cleaned up stale rate limit entries", "count", removed)
	}
	return removed, nil
}
