package engine

import (
	"context"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_Allow(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}

	tests := []struct {
		name string
		in   RouteInput
		want bool
	}{
		{"public route, anonymous", RouteInput{Group: GroupPublic}, true},
		{"api route, anonymous", RouteInput{Group: GroupAPI}, false},
		{"api route, authenticated", RouteInput{Group: GroupAPI, Role: "student", Authenticated: true}, true},
		{"api route, provisional secret", RouteInput{Group: GroupAPI, Role: "student", Authenticated: true, MustChangePassword: true}, false},
		{"password route, provisional secret", RouteInput{Group: GroupPassword, Role: "student", Authenticated: true, MustChangePassword: true}, true},
		{"password route, anonymous", RouteInput{Group: GroupPassword}, false},
		{"admin route, student", RouteInput{Group: GroupAdmin, Role: "student", Authenticated: true}, false},
		{"admin route, admin", RouteInput{Group: GroupAdmin, Role: "admin", Authenticated: true}, true},
		{"admin route, admin on provisional secret", RouteInput{Group: GroupAdmin, Role: "admin", Authenticated: true, MustChangePassword: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Allow(ctx, tt.in)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allow(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
