package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// GenerationsTotal counts generation runs by status (success, failure)
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_generations_total",
			Help: "Total number of media generation runs",
		},
		[]string{"status"},
	)

	// UploadsTotal counts reference image uploads by status (success, failure)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_uploads_total",
			Help: "Total number of reference image uploads",
		},
		[]string{"status"},
	)

	// EnhancementsTotal counts prompt enhancement calls by status
	// (success, failure, canceled)
	EnhancementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_enhancements_total",
			Help: "Total number of prompt enhancement calls",
		},
		[]string{"status"},
	)

	// ThumbnailsTotal counts thumbnail derivations by status (success, failure)
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_thumbnails_total",
			Help: "Total number of thumbnail derivations",
		},
		[]string{"status"},
	)

	// RateLimitDenialsTotal counts requests rejected by the rate limiter
	RateLimitDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_rate_limit_denials_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"endpoint"},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// GenerationDuration tracks end-to-end generation latency
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atelier_generation_duration_seconds",
			Help:    "Media generation latency in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	// UploadSizeBytes tracks distribution of uploaded media sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "atelier_upload_size_bytes",
			Help: "Distribution of uploaded media sizes in bytes",
			Buckets: []float64{
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				10485760,  // 10 MB
				104857600, // 100 MB
			},
		},
	)
)

// Health check metrics
var (
	// HealthStatus is a gauge representing current health status
	// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atelier_health_status",
			Help: "Current health status (0=unhealthy, 1=degraded, 2=healthy)",
		},
	)

	// HealthCheckDuration tracks health check execution time by component
	HealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_health_check_duration_seconds",
			Help:    "Health check execution time in seconds",
			Buckets: []float64{.001, .002, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"component"},
	)
)
