package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixelvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	authOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelvault_auth_outcomes_total",
			Help: "Authentication attempts by action and result",
		},
		[]string{"action", "result"},
	)

	sessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelvault_sessions_swept_total",
			Help: "Expired sessions removed by the background sweeper",
		},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelvault_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// Metrics records request counts and latencies labelled by route pattern,
// so path parameters do not explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// RecordAuthOutcome counts a sign-in, refresh or sign-out attempt.
func RecordAuthOutcome(action string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	authOutcomes.WithLabelValues(action, result).Inc()
}

// RecordSessionsSwept adds n removed sessions to the sweeper counter.
func RecordSessionsSwept(n int64) {
	if n > 0 {
		sessionsSwept.Add(float64(n))
	}
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
