// Package metrics exposes Prometheus collectors for the expert finder.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_pages_fetched_total",
			Help: "Total pages fetched, labeled by host and status.",
		},
		[]string{"host", "status"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expertfinder_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by host.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_fetch_retries_total",
			Help: "Total fetch retries, labeled by host.",
		},
		[]string{"host"},
	)

	blocksDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_blocks_detected_total",
			Help: "Total challenge pages detected, labeled by host.",
		},
		[]string{"host"},
	)

	cooldownSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expertfinder_cooldown_seconds_total",
			Help: "Total seconds of cool-down armed after detected blocks.",
		},
	)

	lecturersProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_lecturers_processed_total",
			Help: "Total lecturers processed, labeled by school and outcome.",
		},
		[]string{"school", "outcome"},
	)

	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_classifications_total",
			Help: "Total relevance verdicts, labeled by verdict.",
		},
		[]string{"verdict"},
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_scholar_resolutions_total",
			Help: "Total author profile resolutions, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	upsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_upserts_total",
			Help: "Total record upserts, labeled by result.",
		},
		[]string{"result"},
	)

	scrapeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_scrape_jobs_total",
			Help: "Total scrape jobs reaching a terminal status.",
		},
		[]string{"status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertfinder_http_requests_total",
			Help: "Total API requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expertfinder_http_request_duration_seconds",
			Help:    "Histogram of API request latencies, labeled by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// SanitizeHost reduces a URL or host string to a bare lowercase hostname so
// metric labels stay low-cardinality.
func SanitizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "unknown"
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch.
func ObserveFetch(host string, status int, duration time.Duration) {
	h := SanitizeHost(host)
	pagesFetchedTotal.WithLabelValues(h, strconv.Itoa(status)).Inc()
	fetchDurationSeconds.WithLabelValues(h).Observe(duration.Seconds())
}

// ObserveRetry records a retried fetch attempt.
func ObserveRetry(host string) {
	fetchRetriesTotal.WithLabelValues(SanitizeHost(host)).Inc()
}

// ObserveBlock records a detected challenge page.
func ObserveBlock(host string) {
	blocksDetectedTotal.WithLabelValues(SanitizeHost(host)).Inc()
}

// ObserveCooldown accumulates the time spent paused after a block.
func ObserveCooldown(window time.Duration) {
	cooldownSeconds.Add(window.Seconds())
}

// ObserveLecturer records one processed lecturer with its outcome.
func ObserveLecturer(school, outcome string) {
	lecturersProcessedTotal.WithLabelValues(school, outcome).Inc()
}

// ObserveClassification records one classifier verdict.
func ObserveClassification(verdict string) {
	classificationsTotal.WithLabelValues(verdict).Inc()
}

// ObserveResolution records one resolver outcome.
func ObserveResolution(outcome string) {
	resolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpsert records one upsert result.
func ObserveUpsert(result string) {
	upsertsTotal.WithLabelValues(result).Inc()
}

// ObserveJob records a scrape job reaching a terminal status.
func ObserveJob(status string) {
	scrapeJobsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
