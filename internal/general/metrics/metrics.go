// Package metrics exposes Prometheus counters for the coordinator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the coordinator records.
type Metrics struct {
	registry *prometheus.Registry

	RideTransitions *prometheus.CounterVec // to_status
	AcceptAttempts  *prometheus.CounterVec // outcome: won|lost|rejected
	MessagesPosted  prometheus.Counter
	HTTPRequests    *prometheus.CounterVec // method, path, code
	HTTPDuration    *prometheus.HistogramVec
	WSConnections   prometheus.Gauge
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RideTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_ride_transitions_total",
			Help: "Committed ride status transitions by target status.",
		}, []string{"to_status"}),
		AcceptAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_accept_attempts_total",
			Help: "Driver accept attempts by outcome.",
		}, []string{"outcome"}),
		MessagesPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordinator_chat_messages_total",
			Help: "Chat messages posted.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coordinator_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordinator_websocket_connections",
			Help: "Open websocket connections.",
		}),
	}
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}
