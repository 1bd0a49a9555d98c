package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for scraping and importing.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ImagesExtracted     prometheus.Counter
	ImagesSkipped       *prometheus.CounterVec
	ImportsTotal        *prometheus.CounterVec
	ImportErrors        *prometheus.CounterVec
	DownloadAttempts    prometheus.Counter
	CompressionAttempts prometheus.Counter
	ImportDuration      *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg. Use prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImagesExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "image_scraper_images_extracted_total",
			Help: "Image records returned by extraction.",
		}),
		ImagesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_scraper_images_skipped_total",
			Help: "Image elements skipped during extraction.",
		}, []string{"reason"}), // empty_src, data_uri, invalid_url, placeholder
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_scraper_imports_total",
			Help: "Import items processed, by outcome.",
		}, []string{"status"}),
		ImportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "image_scraper_import_errors_total",
			Help: "Failed import items, by error category.",
		}, []string{"category"}),
		DownloadAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "image_scraper_download_attempts_total",
			Help: "Individual image download attempts, retries included.",
		}),
		CompressionAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "image_scraper_compression_attempts_total",
			Help: "Re-encodes performed while searching for a quality that fits the size budget.",
		}),
		ImportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "image_scraper_import_duration_seconds",
			Help:    "Duration of a single item import.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"status"}),
	}
}

func (m *Metrics) IncExtracted(n int) {
	if m == nil {
		return
	}
	m.ImagesExtracted.Add(float64(n))
}

func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.ImagesSkipped.WithLabelValues(reason).Inc()
}

// ObserveImport records one finished item. category is ignored for successes.
func (m *Metrics) ObserveImport(status, category string, took time.Duration) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(status).Inc()
	m.ImportDuration.WithLabelValues(status).Observe(took.Seconds())
	if category != "" {
		m.ImportErrors.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) IncDownloadAttempts() {
	if m == nil {
		return
	}
	m.DownloadAttempts.Inc()
}

func (m *Metrics) IncCompressionAttempts() {
	if m == nil {
		return
	}
	m.CompressionAttempts.Inc()
}
