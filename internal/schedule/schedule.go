// Package schedule runs recurring maintenance jobs on a cron runner. Jobs are
// registered by name; re-registering a name replaces the previous entry
// instead of duplicating it.
package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"postgrad-portal/backend/internal/notify"
	sessiondomain "postgrad-portal/backend/internal/session/domain"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// jobTimeout bounds a single job run.
const jobTimeout = time.Minute

// Runner wraps a cron scheduler with named, idempotent registration.
type Runner struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewRunner returns a stopped Runner; call Start after registering jobs.
func NewRunner() *Runner {
	return &Runner{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules job under name with the given cron spec. Registering an
// existing name replaces its schedule. Returns an error for a bad spec.
func (r *Runner) Register(name, spec string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		job(ctx)
	})
	if err != nil {
		return err
	}
	if old, ok := r.entries[name]; ok {
		r.cron.Remove(old)
	}
	r.entries[name] = id
	return nil
}

// Names returns the registered job names.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// Start begins running scheduled jobs.
func (r *Runner) Start() { r.cron.Start() }

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

// SessionSource is the session-repository slice the jobs need.
type SessionSource interface {
	ListExpiringBefore(ctx context.Context, t time.Time) ([]*sessiondomain.Session, error)
	DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error)
}

// ExpiryReminderJob publishes a session.expiring notice for every non-revoked
// session due to expire within lead.
func ExpiryReminderJob(sessions SessionSource, sink notify.Sink, lead time.Duration) Job {
	return func(ctx context.Context) {
		cutoff := time.Now().UTC().Add(lead)
		due, err := sessions.ListExpiringBefore(ctx, cutoff)
		if err != nil {
			log.Printf("schedule: list expiring sessions: %v", err)
			return
		}
		for _, s := range due {
			exp := s.ExpiresAt
			notify.PublishAsync(sink, notify.Notice{
				Event:       notify.EventSessionExpiring,
				PrincipalID: s.PrincipalID,
				Role:        string(s.Role),
				OccurredAt:  time.Now().UTC(),
				ExpiresAt:   &exp,
			})
		}
	}
}

// PruneJob deletes sessions that ended (revoked or expired) more than
// retention ago.
func PruneJob(sessions SessionSource, retention time.Duration) Job {
	return func(ctx context.Context) {
		cutoff := time.Now().UTC().Add(-retention)
		n, err := sessions.DeleteEndedBefore(ctx, cutoff)
		if err != nil {
			log.Printf("schedule: prune sessions: %v", err)
			return
		}
		if n > 0 {
			log.Printf("schedule: pruned %d ended sessions", n)
		}
	}
}
