package metrics

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LibraryCollector collects gallery-level gauges from the database on
// each scrape.
type LibraryCollector struct {
	db *sql.DB

	imagesCount       *prometheus.Desc
	publicImagesCount *prometheus.Desc
	storedBytes       *prometheus.Desc
	promptsCount      *prometheus.Desc
	activeSessions    *prometheus.Desc
}

// NewLibraryCollector creates a new collector over db.
func NewLibraryCollector(db *sql.DB) *LibraryCollector {
	return &LibraryCollector{
		db: db,
		imagesCount: prometheus.NewDesc(
			"atelier_images_count",
			"Number of generated media records",
			nil, nil,
		),
		publicImagesCount: prometheus.NewDesc(
			"atelier_public_images_count",
			"Number of media records with public visibility",
			nil, nil,
		),
		storedBytes: prometheus.NewDesc(
			"atelier_stored_media_bytes",
			"Total bytes of stored generated media",
			nil, nil,
		),
		promptsCount: prometheus.NewDesc(
			"atelier_prompts_count",
			"Number of saved prompts",
			nil, nil,
		),
		activeSessions: prometheus.NewDesc(
			"atelier_active_sessions_count",
			"Number of unexpired user sessions",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *LibraryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.imagesCount
	ch <- c.publicImagesCount
	ch <- c.storedBytes
	ch <- c.promptsCount
	ch <- c.activeSessions
}

// Collect fetches current values from the database and sends them to Prometheus.
// Zero values are sent on query errors to avoid scrape failure.
func (c *LibraryCollector) Collect(ch chan<- prometheus.Metric) {
	var imageCount, publicCount, totalBytes int64
	err := c.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN visibility = 'public' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(size_bytes), 0)
		FROM images
	`).Scan(&imageCount, &publicCount, &totalBytes)
	if err != nil {
		slog.Error("failed to query image metrics", "error", err)
		imageCount, publicCount, totalBytes = 0, 0, 0
	}

	var promptCount int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM prompts`).Scan(&promptCount); err != nil {
		slog.Error("failed to query prompt metrics", "error", err)
		promptCount = 0
	}

	var sessionCount int64
	err = c.db.QueryRow(
		`SELECT COUNT(*) FROM user_sessions WHERE expires_at > ?`,
		time.Now().UnixMilli(),
	).Scan(&sessionCount)
	if err != nil {
		slog.Error("failed to query session metrics", "error", err)
		sessionCount = 0
	}

	ch <- prometheus.MustNewConstMetric(c.imagesCount, prometheus.GaugeValue, float64(imageCount))
	ch <- prometheus.MustNewConstMetric(c.publicImagesCount, prometheus.GaugeValue, float64(publicCount))
	ch <- prometheus.MustNewConstMetric(c.storedBytes, prometheus.GaugeValue, float64(totalBytes))
	ch <- prometheus.MustNewConstMetric(c.promptsCount, prometheus.GaugeValue, float64(promptCount))
	ch <- prometheus.MustNewConstMetric(c.activeSessions, prometheus.GaugeValue, float64(sessionCount))
}
