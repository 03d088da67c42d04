package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/models"
)

// maxJSONBodyBytes bounds JSON request bodies to prevent memory exhaustion
const maxJSONBodyBytes = 1024 * 1024

// sendError writes a JSON error response with a stable machine-readable code
func sendError(w http.ResponseWriter, message, code string, status int) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendJSON writes a JSON success response
func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON parses a bounded JSON request body into dst. A false return
// means the error response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, "Invalid request format", "INVALID_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID extracts a numeric id from the path segment after prefix.
// "/api/images/42/visibility" with prefix "/api/images/" yields 42.
func pathID(path, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path || rest == "" {
		return 0, false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// parseModelsParam splits a comma-separated models filter, dropping
// empty entries.
func parseModelsParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, m := range strings.Split(raw, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
