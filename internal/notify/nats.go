package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes notices as JSON messages on a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the NATS server at url and returns a sink publishing
// to subject. Call Close when shutting down.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if url == "" || subject == "" {
		return nil, fmt.Errorf("notify: NATS url and subject are required")
	}
	nc, err := nats.Connect(url,
		nats.Name("portal-notify"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}
	return &NATSSink{nc: nc, subject: subject}, nil
}

// Publish serializes the notice as JSON and publishes it.
// NATS publish is synchronous and does not take a context; the context is
// checked before publishing so cancelled callers bail out early.
func (s *NATSSink) Publish(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, data)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
