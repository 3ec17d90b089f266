package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// TokensIssued counts access tokens minted by successful logins.
	TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relief_tokens_issued_total",
		Help: "Access tokens issued.",
	})

	// AuthFailures counts rejected logins and rejected bearer tokens by reason.
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_auth_failures_total",
			Help: "Authentication failures by reason.",
		},
		[]string{"reason"},
	)

	ReferentialViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relief_referential_violations_total",
		Help: "Assignments rejected because a referenced volunteer or incident does not exist.",
	})

	// StatusTransitions counts applied status changes by entity kind and target status.
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_status_transitions_total",
			Help: "Applied status transitions.",
		},
		[]string{"kind", "status"},
	)

	initOnce sync.Once
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			TokensIssued, AuthFailures, ReferentialViolations, StatusTransitions,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CanonicalPath returns the matched chi route pattern so that ids never become
// label values. Requests that matched no route collapse into one label.
func CanonicalPath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Instrument records RPS, latency and in-flight requests. It must run as chi
// middleware so the route pattern is resolved by the time the handler returns.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := CanonicalPath(r)
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
