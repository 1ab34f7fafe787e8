// Package metrics exposes Prometheus collectors for the leaderboard service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the loader and the renderer.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	documentLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_document_loads_total",
			Help: "Total number of document loads, labeled by document kind and outcome.",
		},
		[]string{"document", "outcome"},
	)

	documentLoadDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaderboard_document_load_duration_seconds",
			Help:    "Histogram of document load latencies, labeled by document kind.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"document"},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_requests_total",
			Help: "Total number of document cache lookups, labeled by backend and result.",
		},
		[]string{"backend", "result"},
	)

	pagesRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_pages_rendered_total",
			Help: "Total number of pages rendered, labeled by page kind and outcome.",
		},
		[]string{"page", "outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of HTTP requests rejected by the per-client rate limiter.",
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocumentLoad records a single document fetch and decode.
func ObserveDocumentLoad(document, outcome string, duration time.Duration) {
	documentLoadsTotal.WithLabelValues(document, outcome).Inc()
	documentLoadDurationSeconds.WithLabelValues(document).Observe(duration.Seconds())
}

// ObserveCacheRequest records a cache lookup; result is hit, miss or error.
func ObserveCacheRequest(backend, result string) {
	cacheRequestsTotal.WithLabelValues(backend, result).Inc()
}

// ObservePageRendered increments the render counter.
func ObservePageRendered(page, outcome string) {
	pagesRenderedTotal.WithLabelValues(page, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimited increments the rejected request counter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}
