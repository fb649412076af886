// Package httpctx carries the authenticated identity through request contexts.
package httpctx

import (
	"context"

	"postgrad-portal/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var (
	principalIDKey = contextKey{"principal_id"}
	roleKey        = contextKey{"role"}
	sessionIDKey   = contextKey{"session_id"}
	clientIPKey    = contextKey{"client_ip"}
)

// WithIdentity returns a context with principal_id, role, and session_id set.
// Handlers read these via GetPrincipalID, GetRole, GetSessionID.
func WithIdentity(ctx context.Context, principalID string, role domain.Role, sessionID string) context.Context {
	ctx = context.WithValue(ctx, principalIDKey, principalID)
	ctx = context.WithValue(ctx, roleKey, role)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// GetPrincipalID returns the principal_id from context and true if set; otherwise "", false.
func GetPrincipalID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(principalIDKey).(string)
	return v, ok
}

// GetRole returns the role from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (domain.Role, bool) {
	v, ok := ctx.Value(roleKey).(domain.Role)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// WithClientIP returns a context carrying the remote client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the client IP from context, or "" if not set.
func GetClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
