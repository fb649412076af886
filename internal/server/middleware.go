package server

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"

	authhandler "postgrad-portal/backend/internal/auth/handler"
	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/policy/engine"
	"postgrad-portal/backend/internal/security"
	"postgrad-portal/backend/internal/server/httpctx"
)

// routeGroup classifies a request path for the route-access policy.
func routeGroup(path string) string {
	switch {
	case path == "/healthz" || path == "/metrics":
		return engine.GroupPublic
	case strings.HasPrefix(path, "/login/") || path == "/refresh" || path == "/logout":
		return engine.GroupPublic
	case path == "/password":
		return engine.GroupPassword
	case strings.HasPrefix(path, "/admin/"):
		return engine.GroupAdmin
	default:
		return engine.GroupAPI
	}
}

// AuthMiddleware validates the access cookie, loads the identity into the
// request context, and enforces the route-access policy. Requests on public
// routes pass through with whatever identity the cookie yields; everything
// else needs the policy's consent.
type AuthMiddleware struct {
	tokens  *security.TokenProvider
	policy  engine.Evaluator
	metrics *Metrics
}

// NewAuthMiddleware returns the middleware. metrics may be nil.
func NewAuthMiddleware(tokens *security.TokenProvider, policy engine.Evaluator, metrics *Metrics) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, policy: policy, metrics: metrics}
}

// Wrap returns next guarded by cookie validation and policy evaluation.
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := httpctx.WithClientIP(r.Context(), clientIP(r))

		authenticated := false
		var role string
		var mustChange bool
		if c, err := r.Cookie(authhandler.AccessCookieName); err == nil && c.Value != "" {
			if pid, rl, sid, pwc, err := m.tokens.ValidateAccess(c.Value); err == nil {
				ctx = httpctx.WithIdentity(ctx, pid, identitydomain.Role(rl), sid)
				authenticated = true
				role = rl
				mustChange = pwc
			}
		}

		in := engine.RouteInput{
			Group:              routeGroup(r.URL.Path),
			Role:               role,
			Authenticated:      authenticated,
			MustChangePassword: mustChange,
		}
		allowed, err := m.policy.Allow(ctx, in)
		if err != nil {
			log.Printf("server: policy evaluation failed: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "internal")
			return
		}
		if !allowed {
			if m.metrics != nil {
				m.metrics.PolicyDenied()
			}
			if !authenticated {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if mustChange {
				writeJSONError(w, http.StatusForbidden, "password_change_required")
				return
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers X-Forwarded-For (first hop) and falls back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
