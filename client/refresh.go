package client

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionTerminated rejects refresh waiters that were queued when the
// session was torn down by a logout.
var ErrSessionTerminated = errors.New("client: session terminated")

// refreshCoordinator serializes token refresh: however many requests hit a 401
// at once, exactly one POST /refresh runs and every caller observes its
// outcome. Logout drains the queue with ErrSessionTerminated and keeps
// rejecting until the next login resets the coordinator.
type refreshCoordinator struct {
	mu         sync.Mutex
	inflight   bool
	waiters    []chan error
	loggingOut bool
}

func newRefreshCoordinator() *refreshCoordinator {
	return &refreshCoordinator{}
}

// await runs do once no matter how many goroutines call concurrently. The
// first caller becomes the leader and performs the refresh; the rest queue and
// receive the leader's result. A logout while queued yields
// ErrSessionTerminated.
func (c *refreshCoordinator) await(ctx context.Context, do func(context.Context) error) error {
	c.mu.Lock()
	if c.loggingOut {
		c.mu.Unlock()
		return ErrSessionTerminated
	}
	if c.inflight {
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.inflight = true
	c.mu.Unlock()

	err := do(ctx)

	c.mu.Lock()
	// Logout may have raced the in-flight refresh; its verdict wins.
	if c.loggingOut && err == nil {
		err = ErrSessionTerminated
	}
	c.inflight = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	return err
}

// logout rejects every queued waiter and all future awaits until reset.
func (c *refreshCoordinator) logout() {
	c.mu.Lock()
	c.loggingOut = true
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		ch <- ErrSessionTerminated
	}
}

// reset re-arms the coordinator after a successful login.
func (c *refreshCoordinator) reset() {
	c.mu.Lock()
	c.loggingOut = false
	c.mu.Unlock()
}
