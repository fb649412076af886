// Package server assembles the HTTP surface: routes, auth middleware,
// telemetry instrumentation, and metrics exposition.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	authhandler "postgrad-portal/backend/internal/auth/handler"
	healthhandler "postgrad-portal/backend/internal/health/handler"
)

// Deps holds the handlers and middleware the router mounts.
type Deps struct {
	Auth   *authhandler.AuthHandler
	Health *healthhandler.Handler
	// AuthMW guards every route with cookie validation + route policy.
	AuthMW *AuthMiddleware
	// Metrics instruments all requests; nil disables instrumentation.
	Metrics *Metrics
	// ServiceName labels otel spans; empty disables tracing middleware.
	ServiceName string
}

// NewHandler builds the complete HTTP handler chain:
// otelhttp → auth middleware → metrics → mux.
func NewHandler(deps Deps) http.Handler {
	mux := http.NewServeMux()
	deps.Auth.Register(mux)
	if deps.Health != nil {
		mux.Handle("GET /healthz", deps.Health)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	if deps.Metrics != nil {
		h = deps.Metrics.Instrument(h)
	}
	h = deps.AuthMW.Wrap(h)
	if deps.ServiceName != "" {
		h = otelhttp.NewHandler(h, deps.ServiceName)
	}
	return h
}
