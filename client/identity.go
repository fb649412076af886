package client

import (
	"context"
	"errors"
	"sync"
	"time"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
)

// IdentityContext is the client's single source of truth for "who is signed
// in". It owns the principal, the session timers and the persisted state, and
// keeps the three consistent across login, logout, resume and forced logout.
type IdentityContext struct {
	client *Client
	store  StateStore

	// SessionConfig overrides the default session windows. Set before the
	// first Login.
	SessionConfig SessionConfig
	// OnReminder, when set, is forwarded the session-expiry reminder.
	// Set before the first Login.
	OnReminder func(remaining time.Duration)
	// OnForcedLogout, when set, is told why the session ended locally
	// (TimeoutExpired, TimeoutInactive or ReasonRefreshFailed).
	OnForcedLogout func(reason string)

	mu        sync.Mutex
	principal *identitydomain.Principal
	timers    *SessionTimers
	observers []func(*identitydomain.Principal)
	closed    bool
}

// ReasonRefreshFailed is the forced-logout reason for a terminal refresh
// rejection from the server.
const ReasonRefreshFailed = "refresh_failed"

// NewIdentityContext returns an anonymous context bound to client and store.
func NewIdentityContext(c *Client, store StateStore) *IdentityContext {
	ic := &IdentityContext{client: c, store: store}
	c.onRefreshFailure = func(error) {
		ic.teardown()
		if ic.OnForcedLogout != nil {
			ic.OnForcedLogout(ReasonRefreshFailed)
		}
	}
	return ic
}

// Login authenticates and, on success, installs the principal, starts the
// session timers and persists state for later resume.
func (ic *IdentityContext) Login(ctx context.Context, role identitydomain.Role, email, password string) (*identitydomain.Principal, error) {
	p, err := ic.client.Login(ctx, role, email, password)
	if err != nil {
		return nil, err
	}
	ic.mu.Lock()
	if ic.timers != nil {
		ic.timers.Stop()
	}
	ic.principal = p
	ic.timers = StartSession(time.Now(), ic.SessionConfig, ic.callbacks())
	meta := ic.timers.Meta()
	observers := ic.snapshotObserversLocked()
	ic.mu.Unlock()

	ic.persist(p, meta)
	notifyObservers(observers, p)
	return p, nil
}

// Logout ends the session. Every local cleanup step runs even when the server
// call fails: the refresh queue is drained, timers stop, persisted state is
// wiped and observers see the anonymous principal. The server call's error is
// returned for logging only.
func (ic *IdentityContext) Logout(ctx context.Context) error {
	err := ic.client.Logout(ctx)
	ic.teardown()
	return err
}

// UpdatePrincipal replaces the cached principal after a server-side change
// (e.g. a completed password change) without disturbing the session timers.
func (ic *IdentityContext) UpdatePrincipal(p *identitydomain.Principal) {
	ic.mu.Lock()
	if ic.principal == nil {
		// No session; nothing to update.
		ic.mu.Unlock()
		return
	}
	ic.principal = p
	var meta SessionMeta
	if ic.timers != nil {
		meta = ic.timers.Meta()
	}
	observers := ic.snapshotObserversLocked()
	ic.mu.Unlock()

	ic.persist(p, meta)
	notifyObservers(observers, p)
}

// Current returns the signed-in principal, or nil when anonymous.
func (ic *IdentityContext) Current() *identitydomain.Principal {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.principal
}

// IsAuthenticated reports whether a principal is signed in.
func (ic *IdentityContext) IsAuthenticated() bool {
	return ic.Current() != nil
}

// Resume restores a persisted session: it reloads state for this origin,
// revalidates against the server with a silent /me, and either reinstates the
// principal or settles into the anonymous state. Resume never fails hard; a
// network error just leaves the context anonymous.
func (ic *IdentityContext) Resume(ctx context.Context) *identitydomain.Principal {
	st, err := ic.store.Load(ic.client.Origin())
	if err != nil || st == nil || st.Principal == nil {
		return nil
	}
	p, err := ic.client.Me(ctx)
	if err != nil {
		// The server rejected the session: the persisted state is dead weight.
		// A transport error leaves it in place for a later attempt.
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			_ = ic.store.Clear(ic.client.Origin())
		}
		return nil
	}

	ic.mu.Lock()
	ic.client.refresh.reset()
	if ic.timers != nil {
		ic.timers.Stop()
	}
	ic.principal = p
	ic.timers = ResumeSession(st.Meta, time.Now(), ic.SessionConfig, ic.callbacks())
	if ic.timers == nil {
		// Persisted meta already expired; treat as a fresh session start.
		ic.timers = StartSession(time.Now(), ic.SessionConfig, ic.callbacks())
	}
	meta := ic.timers.Meta()
	observers := ic.snapshotObserversLocked()
	ic.mu.Unlock()

	ic.persist(p, meta)
	notifyObservers(observers, p)
	return p
}

// ExtendSession slides the soft expiry forward. Returns false when the hard
// cap has been reached and the session cannot be extended further.
func (ic *IdentityContext) ExtendSession() bool {
	ic.mu.Lock()
	timers := ic.timers
	ic.mu.Unlock()
	if timers == nil {
		return false
	}
	ok := timers.Extend(time.Now())
	if ok {
		ic.mu.Lock()
		p := ic.principal
		meta := timers.Meta()
		ic.mu.Unlock()
		ic.persist(p, meta)
	}
	return ok
}

// RecordActivity marks user activity, resetting the inactivity countdown.
func (ic *IdentityContext) RecordActivity() {
	ic.mu.Lock()
	timers := ic.timers
	ic.mu.Unlock()
	if timers != nil {
		timers.Touch(time.Now())
	}
}

// SessionMeta returns the current session record, or false when anonymous.
func (ic *IdentityContext) SessionMeta() (SessionMeta, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.timers == nil {
		return SessionMeta{}, false
	}
	return ic.timers.Meta(), true
}

// OnChange registers an observer called with the principal after every
// identity transition (login, logout, update, resume). Nil means anonymous.
func (ic *IdentityContext) OnChange(fn func(*identitydomain.Principal)) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.closed {
		return
	}
	ic.observers = append(ic.observers, fn)
}

// Close stops timers and drops observers without touching the server or the
// persisted state. Use Logout to actually end the session.
func (ic *IdentityContext) Close() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.closed = true
	if ic.timers != nil {
		ic.timers.Stop()
		ic.timers = nil
	}
	ic.observers = nil
}

// forceLogout ends the session locally after a timeout or a terminal refresh
// failure, then best-effort revokes it server-side.
func (ic *IdentityContext) forceLogout(reason string) {
	ic.teardown()
	if ic.OnForcedLogout != nil {
		ic.OnForcedLogout(reason)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ic.client.Logout(ctx)
}

// teardown runs the local logout steps: drain the refresh queue, stop timers,
// clear state, go anonymous, notify observers. Safe to call repeatedly.
func (ic *IdentityContext) teardown() {
	ic.client.refresh.logout()
	ic.mu.Lock()
	if ic.timers != nil {
		ic.timers.Stop()
		ic.timers = nil
	}
	wasAuthenticated := ic.principal != nil
	ic.principal = nil
	observers := ic.snapshotObserversLocked()
	ic.mu.Unlock()

	_ = ic.store.ClearAll()
	if wasAuthenticated {
		notifyObservers(observers, nil)
	}
}

func (ic *IdentityContext) callbacks() TimerCallbacks {
	return TimerCallbacks{
		OnReminder: func(remaining time.Duration) {
			if ic.OnReminder != nil {
				ic.OnReminder(remaining)
			}
		},
		OnTimeout: func(reason string) {
			ic.forceLogout(reason)
		},
	}
}

func (ic *IdentityContext) persist(p *identitydomain.Principal, meta SessionMeta) {
	_ = ic.store.Save(ic.client.Origin(), &PersistedState{Principal: p, Meta: meta})
}

func (ic *IdentityContext) snapshotObserversLocked() []func(*identitydomain.Principal) {
	out := make([]func(*identitydomain.Principal), len(ic.observers))
	copy(out, ic.observers)
	return out
}

func notifyObservers(observers []func(*identitydomain.Principal), p *identitydomain.Principal) {
	for _, fn := range observers {
		fn(p)
	}
}
