// Package engine decides whether an authenticated principal may reach a route
// group. The auth middleware builds a RouteInput per request and asks the
// evaluator for a verdict.
package engine

import "context"

// Route groups the middleware classifies request paths into.
const (
	GroupPublic   = "public"   // login, refresh, logout, health, metrics
	GroupPassword = "password" // the password-change endpoint
	GroupAdmin    = "admin"    // staff/admin console routes
	GroupAPI      = "api"      // everything else behind authentication
)

// RouteInput is the per-request policy input.
type RouteInput struct {
	Group              string
	Role               string
	Authenticated      bool
	MustChangePassword bool
}

// Evaluator evaluates route-access policy.
type Evaluator interface {
	// Allow reports whether the request described by in may proceed.
	Allow(ctx context.Context, in RouteInput) (bool, error)
}
