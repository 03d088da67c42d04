package middleware

import (
	"net/http"
)

// SecurityHeadersMiddleware adds security-related HTTP headers to all responses
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Browser must respect Content-Type; uploads must never execute
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// API-only service: nothing should load as a document
		csp := "default-src 'none'; " +
			"img-src 'self'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'"
		w.Header().Set("Content-Security-Policy", csp)

		// Don't leak gallery URLs to external sites
		w.Header().Set("Referrer-Policy", "same-origin")

		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), interest-cohort=()")

		next.ServeHTTP(w, r)
	})
}
