package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // default if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality explosion.
// Dynamic segments (image IDs, prompt IDs) are replaced with placeholders.
func normalizePath(path string) string {
	switch {
	case path == "/":
		return "/"
	case path == "/health":
		return "/health"
	case path == "/metrics":
		return "/metrics"
	case path == "/api/generate":
		return "/api/generate"
	case path == "/api/upload":
		return "/api/upload"
	case path == "/api/enhance-prompt":
		return "/api/enhance-prompt"
	case path == "/api/images":
		return "/api/images"
	case path == "/api/feed":
		return "/api/feed"
	case path == "/api/limits":
		return "/api/limits"

	case strings.HasPrefix(path, "/api/images/bulk/"):
		return "/api/images/bulk/*"

	case strings.HasPrefix(path, "/api/images/"):
		if strings.HasSuffix(path, "/visibility") {
			return "/api/images/:id/visibility"
		}
		return "/api/images/:id"

	case path == "/api/prompts":
		return "/api/prompts"

	case strings.HasPrefix(path, "/api/prompts/"):
		return "/api/prompts/:id"

	case path == "/api/references":
		return "/api/references"

	case strings.HasPrefix(path, "/api/references/"):
		return "/api/references/:id"

	case strings.HasPrefix(path, "/api/auth"):
		return "/api/auth/*"

	default:
		return "/other"
	}
}
