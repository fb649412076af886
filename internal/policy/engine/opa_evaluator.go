package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const routePolicyQuery = "data.portal.routes.allow"

// Route-access policy. Public routes are always reachable; a principal on a
// provisional secret is confined to the password-change endpoint; admin routes
// require the admin role.
const routeRegoPolicy = `package portal.routes

default allow = false

allow if {
	input.group == "public"
}

allow if {
	input.authenticated
	input.group == "password"
}

allow if {
	input.authenticated
	not input.must_change_password
	input.group == "api"
}

allow if {
	input.authenticated
	not input.must_change_password
	input.group == "admin"
	input.role == "admin"
}
`

// OPAEvaluator evaluates the route-access policy with in-process OPA Rego.
// The policy is compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the route policy and returns an evaluator.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	q, err := rego.New(
		rego.Query(routePolicyQuery),
		rego.Module("routes.rego", routeRegoPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compile route policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allow evaluates the route policy for the given input.
func (e *OPAEvaluator) Allow(ctx context.Context, in RouteInput) (bool, error) {
	input := map[string]interface{}{
		"group":                in.Group,
		"role":                 in.Role,
		"authenticated":        in.Authenticated,
		"must_change_password": in.MustChangePassword,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("policy: eval route policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck verifies the compiled policy evaluates. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, RouteInput{Group: GroupPublic})
	return err
}
