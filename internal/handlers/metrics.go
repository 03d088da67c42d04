package handlers

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nferro/atelier/internal/metrics"
)

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint
func MetricsHandler(db *sql.DB) http.Handler {
	collector := metrics.NewLibraryCollector(db)
	prometheus.MustRegister(collector)

	return promhttp.Handler()
}
