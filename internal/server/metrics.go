package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the auth subsystem.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	denied    prometheus.Counter
}

// NewMetrics registers the collectors on reg and returns them. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by route pattern, method, and status code.",
		}, []string{"route", "method", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by role and outcome.",
		}, []string{"role", "outcome"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_token_refreshes_total",
			Help: "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		denied: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_policy_denials_total",
			Help: "Requests rejected by the route-access policy.",
		}),
	}
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps next with request counting and latency observation, plus
// the login/refresh outcome counters keyed off the response status.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		switch route {
		case "POST /login/{role}":
			m.logins.WithLabelValues(r.PathValue("role"), outcome(rec.status)).Inc()
		case "POST /refresh":
			m.refreshes.WithLabelValues(outcome(rec.status)).Inc()
		}
	})
}

// PolicyDenied counts one policy rejection.
func (m *Metrics) PolicyDenied() {
	m.denied.Inc()
}

func outcome(status int) string {
	if status < 400 {
		return "success"
	}
	return "failure"
}
