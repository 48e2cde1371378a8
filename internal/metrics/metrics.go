package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the console.
type Metrics struct {
	// Tracking metrics
	Clicks          *prometheus.CounterVec
	DuplicateClicks *prometheus.CounterVec
	Submissions     *prometheus.CounterVec

	// Report metrics
	ReportBuilds      *prometheus.CounterVec
	ReportBuildTime   *prometheus.HistogramVec
	ReportCacheHits   *prometheus.CounterVec
	SnapshotFailures  prometheus.Counter
	CampaignsReported prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// System metrics
	DBConnections    *prometheus.GaugeVec
	GeoLookupLatency *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		// Tracking metrics
		Clicks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clicks_total",
				Help:      "Total tracked link clicks",
			},
			[]string{"platform"},
		),
		DuplicateClicks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_clicks_total",
				Help:      "Clicks dropped by ingest deduplication",
			},
			[]string{"platform"},
		),
		Submissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_submissions_total",
				Help:      "Total credential capture submissions",
			},
			[]string{"platform"},
		),

		// Report metrics
		ReportBuilds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_builds_total",
				Help:      "Overview report builds by outcome",
			},
			[]string{"status"},
		),
		ReportBuildTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_build_seconds",
				Help:      "Time spent building the overview report",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"status"},
		),
		ReportCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_cache_total",
				Help:      "Overview cache lookups by result",
			},
			[]string{"result"},
		),
		SnapshotFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_failures_total",
				Help:      "Failed three-way snapshot fetches",
			},
		),
		CampaignsReported: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "campaigns_reported",
				Help:      "Campaigns seen in the latest overview build",
			},
		),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by path and status",
			},
			[]string{"path", "method", "status"},
		),
		HTTPLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_latency_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"path", "method"},
		),

		// System metrics
		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		GeoLookupLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"found"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint", "ip"},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordClick records a tracked click.
func (m *Metrics) RecordClick(platform string) {
	m.Clicks.WithLabelValues(platform).Inc()
}

// RecordDuplicateClick records a click dropped by deduplication.
func (m *Metrics) RecordDuplicateClick(platform string) {
	m.DuplicateClicks.WithLabelValues(platform).Inc()
}

// RecordSubmission records a credential capture.
func (m *Metrics) RecordSubmission(platform string) {
	m.Submissions.WithLabelValues(platform).Inc()
}

// RecordReportBuild records an overview build.
func (m *Metrics) RecordReportBuild(status string, elapsed time.Duration, campaigns int) {
	m.ReportBuilds.WithLabelValues(status).Inc()
	m.ReportBuildTime.WithLabelValues(status).Observe(elapsed.Seconds())
	if status == "ok" {
		m.CampaignsReported.Set(float64(campaigns))
	}
}

// RecordCacheLookup records an overview cache lookup result.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ReportCacheHits.WithLabelValues(result).Inc()
}

// RecordSnapshotFailure records a failed three-way snapshot fetch.
func (m *Metrics) RecordSnapshotFailure() {
	m.SnapshotFailures.Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(path, method string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(path, method).Observe(latency.Seconds())
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(found bool, latency time.Duration) {
	f := "false"
	if found {
		f = "true"
	}
	m.GeoLookupLatency.WithLabelValues(f).Observe(latency.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint, ip string) {
	m.RateLimitHits.WithLabelValues(endpoint, ip).Inc()
}
