package client

import (
	"sync"
	"time"
)

// Default session windows. The soft window slides forward on renewal; the
// hard cap is fixed at session start and renewals never move expiry past it.
const (
	SoftWindow     = 3 * time.Hour
	HardCap        = 12 * time.Hour
	ReminderLead   = 15 * time.Minute
	InactivityIdle = 15 * time.Minute
)

// Timeout reasons passed to the OnTimeout callback.
const (
	TimeoutExpired  = "expired"
	TimeoutInactive = "inactive"
)

// SessionConfig sets the session lifetime windows. The zero value is replaced
// field by field with the package defaults.
type SessionConfig struct {
	SoftWindow     time.Duration
	HardCap        time.Duration
	ReminderLead   time.Duration
	InactivityIdle time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SoftWindow == 0 {
		c.SoftWindow = SoftWindow
	}
	if c.HardCap == 0 {
		c.HardCap = HardCap
	}
	if c.ReminderLead == 0 {
		c.ReminderLead = ReminderLead
	}
	if c.InactivityIdle == 0 {
		c.InactivityIdle = InactivityIdle
	}
	return c
}

// SessionMeta is the client-side record of the current session's lifetime.
type SessionMeta struct {
	Start        time.Time `json:"start"`
	ExpiresAt    time.Time `json:"expiresAt"`
	MaxExpiresAt time.Time `json:"maxExpiresAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// TimerCallbacks receive session lifetime events. Callbacks run on timer
// goroutines.
type TimerCallbacks struct {
	// OnReminder fires once per soft window, ReminderLead before expiry.
	OnReminder func(remaining time.Duration)
	// OnTimeout fires when the session must end locally, with TimeoutExpired
	// or TimeoutInactive.
	OnTimeout func(reason string)
}

// SessionTimers tracks a SessionMeta and drives the reminder, expiry and
// inactivity timers. A stopped SessionTimers never fires again; timer
// callbacks that lost the race with Stop are suppressed.
type SessionTimers struct {
	cfg SessionConfig
	cb  TimerCallbacks

	mu      sync.Mutex
	meta    SessionMeta
	stopped bool
	// Generation counters invalidate already-fired callbacks that lost the
	// race with a rearm. The inactivity timer has its own counter so Touch
	// does not disturb the reminder and expiry timers.
	expiryGen  int
	inactGen   int
	reminder   *time.Timer
	expiry     *time.Timer
	inactivity *time.Timer
}

// StartSession begins tracking a session that started now.
func StartSession(now time.Time, cfg SessionConfig, cb TimerCallbacks) *SessionTimers {
	cfg = cfg.withDefaults()
	t := &SessionTimers{
		cfg: cfg,
		cb:  cb,
		meta: SessionMeta{
			Start:        now,
			ExpiresAt:    now.Add(cfg.SoftWindow),
			MaxExpiresAt: now.Add(cfg.HardCap),
			LastActivity: now,
		},
	}
	t.mu.Lock()
	t.rearmLocked(now)
	t.mu.Unlock()
	return t
}

// ResumeSession restores timers from a persisted SessionMeta. Returns nil when
// the session already passed its expiry.
func ResumeSession(meta SessionMeta, now time.Time, cfg SessionConfig, cb TimerCallbacks) *SessionTimers {
	if !now.Before(meta.ExpiresAt) || !now.Before(meta.MaxExpiresAt) {
		return nil
	}
	t := &SessionTimers{cfg: cfg.withDefaults(), cb: cb, meta: meta}
	t.mu.Lock()
	t.rearmLocked(now)
	t.mu.Unlock()
	return t
}

// Meta returns a snapshot of the session record.
func (t *SessionTimers) Meta() SessionMeta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta
}

// Extend slides the soft expiry one window forward, clamped to the hard cap.
// Returns false without touching any state when the session already sits at
// the cap; the caller surfaces that as a "cannot extend further" signal.
func (t *SessionTimers) Extend(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	if !t.meta.ExpiresAt.Before(t.meta.MaxExpiresAt) {
		return false
	}
	next := t.meta.ExpiresAt.Add(t.cfg.SoftWindow)
	if next.After(t.meta.MaxExpiresAt) {
		next = t.meta.MaxExpiresAt
	}
	t.meta.ExpiresAt = next
	t.rearmLocked(now)
	return true
}

// Touch records activity and pushes the inactivity deadline out.
func (t *SessionTimers) Touch(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.meta.LastActivity = now
	t.armInactivityLocked()
}

// Stop cancels all timers. After Stop returns no callback will start; a
// callback already past its generation check may still be running.
func (t *SessionTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.expiryGen++
	t.inactGen++
	for _, tm := range []*time.Timer{t.reminder, t.expiry, t.inactivity} {
		if tm != nil {
			tm.Stop()
		}
	}
	t.reminder, t.expiry, t.inactivity = nil, nil, nil
}

// rearmLocked replaces all three timers for the current meta. Caller holds t.mu.
func (t *SessionTimers) rearmLocked(now time.Time) {
	t.expiryGen++
	if t.reminder != nil {
		t.reminder.Stop()
	}
	if t.expiry != nil {
		t.expiry.Stop()
	}

	gen := t.expiryGen
	untilExpiry := t.meta.ExpiresAt.Sub(now)
	t.expiry = time.AfterFunc(untilExpiry, func() {
		if t.staleExpiry(gen) {
			return
		}
		if t.cb.OnTimeout != nil {
			t.cb.OnTimeout(TimeoutExpired)
		}
	})
	if lead := untilExpiry - t.cfg.ReminderLead; lead > 0 {
		remaining := t.cfg.ReminderLead
		t.reminder = time.AfterFunc(lead, func() {
			if t.staleExpiry(gen) {
				return
			}
			if t.cb.OnReminder != nil {
				t.cb.OnReminder(remaining)
			}
		})
	} else {
		t.reminder = nil
	}
	t.armInactivityLocked()
}

// armInactivityLocked restarts the inactivity countdown. Caller holds t.mu.
func (t *SessionTimers) armInactivityLocked() {
	t.inactGen++
	if t.inactivity != nil {
		t.inactivity.Stop()
	}
	gen := t.inactGen
	t.inactivity = time.AfterFunc(t.cfg.InactivityIdle, func() {
		if t.staleInactivity(gen) {
			return
		}
		if t.cb.OnTimeout != nil {
			t.cb.OnTimeout(TimeoutInactive)
		}
	})
}

func (t *SessionTimers) staleExpiry(gen int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped || t.expiryGen != gen
}

func (t *SessionTimers) staleInactivity(gen int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped || t.inactGen != gen
}
