// Package handler serves readiness for Kubernetes, load balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

// Pinger reports database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports policy-engine health (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz. Either dependency may be nil; a nil check is skipped.
type Handler struct {
	db     Pinger
	policy PolicyChecker
}

// New returns a health Handler over the given checks.
func New(db Pinger, policy PolicyChecker) *Handler {
	return &Handler{db: db, policy: policy}
}

// ServeHTTP answers 200 {"status":"serving"} when every configured check
// passes and 503 {"status":"not_serving"} otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serving := true
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			log.Printf("health: db ping failed: %v", err)
			serving = false
		}
	}
	if serving && h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			log.Printf("health: policy check failed: %v", err)
			serving = false
		}
	}
	status := http.StatusOK
	body := map[string]string{"status": "serving"}
	if !serving {
		status = http.StatusServiceUnavailable
		body["status"] = "not_serving"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
