// Package notify publishes portal notifications to a fire-and-forget sink.
// Delivery (email rendering, digests) is owned elsewhere; this subsystem only
// emits events and never blocks a request on them.
package notify

import (
	"context"
	"log"
	"time"
)

// publishTimeout is the max time allowed for a single async publish.
const publishTimeout = 5 * time.Second

// Event names emitted by the auth subsystem.
const (
	EventAccountVerified = "account.verified"
	EventSessionExpiring = "session.expiring"
	EventPasswordChanged = "password.changed"
)

// Notice is one notification event.
type Notice struct {
	Event       string    `json:"event"`
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role"`
	Email       string    `json:"email,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	// ExpiresAt is set for session.expiring notices.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Sink delivers notices. Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, n Notice) error
}

// PublishAsync publishes n in a goroutine with a short timeout so the caller
// is never blocked. Best-effort: errors are logged. sink may be nil; then the
// notice is dropped without starting a goroutine.
//
// The goroutine uses context.Background() with publishTimeout so request
// cancellation does not abort an in-flight publish.
func PublishAsync(sink Sink, n Notice) {
	if sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := sink.Publish(ctx, n); err != nil {
			log.Printf("notify: async publish %s failed: %v", n.Event, err)
		}
	}()
}

// NoopSink drops every notice. Used when no broker is configured.
type NoopSink struct{}

// Publish discards the notice.
func (NoopSink) Publish(ctx context.Context, n Notice) error { return nil }
