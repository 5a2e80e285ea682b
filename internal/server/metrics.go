// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// uploadsTotal counts completed evidence uploads, partitioned by outcome:
	// "ok", "rejected", or "error".
	uploadsTotal *prometheus.CounterVec

	// uploadBytes records the size distribution of accepted evidence uploads.
	uploadBytes prometheus.Histogram

	// searchesTotal counts completed search and similarity requests,
	// partitioned by outcome: "ok" or "error".
	searchesTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "api",
			Name:      "uploads_total",
			Help:      "Total number of evidence uploads handled, partitioned by outcome.",
		}, []string{"outcome"}),

		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evidence",
			Subsystem: "api",
			Name:      "upload_bytes",
			Help:      "Size in bytes of accepted evidence uploads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "api",
			Name:      "searches_total",
			Help:      "Total number of search and similarity requests, partitioned by outcome.",
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "evidence",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeHTTP records one completed HTTP request in the request counter and
// latency histogram. The raw path is collapsed to a handler label first so
// per-evidence URLs do not explode label cardinality.
func (m *serverMetrics) observeHTTP(method, path, code string, elapsed time.Duration) {
	h := handlerLabel(path)
	m.httpRequestsTotal.WithLabelValues(method, h, code).Inc()
	m.httpDurationSeconds.WithLabelValues(method, h).Observe(elapsed.Seconds())
}

// handlerLabel collapses a request path to its logical endpoint name.
// Evidence IDs are replaced with a placeholder segment.
func handlerLabel(path string) string {
	switch {
	case path == "/api/evidence":
		return "/api/evidence"
	case strings.HasPrefix(path, "/api/evidence/") && strings.HasSuffix(path, "/similar"):
		return "/api/evidence/{id}/similar"
	case strings.HasPrefix(path, "/api/evidence/"):
		return "/api/evidence/{id}"
	default:
		return path
	}
}
