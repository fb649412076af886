package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSessionWindows(t *testing.T) {
	start := time.Now()
	timers := StartSession(start, SessionConfig{}, TimerCallbacks{})
	defer timers.Stop()

	meta := timers.Meta()
	assert.Equal(t, start, meta.Start)
	assert.Equal(t, start.Add(SoftWindow), meta.ExpiresAt)
	assert.Equal(t, start.Add(HardCap), meta.MaxExpiresAt)
	assert.Equal(t, start, meta.LastActivity)
}

func TestExtendSlidesSoftExpiry(t *testing.T) {
	start := time.Now()
	timers := StartSession(start, SessionConfig{}, TimerCallbacks{})
	defer timers.Stop()

	// The new expiry is the old expiry plus one window, regardless of when
	// the extension happens within the window.
	later := start.Add(2 * time.Hour)
	require.True(t, timers.Extend(later))
	meta := timers.Meta()
	assert.Equal(t, start.Add(SoftWindow).Add(SoftWindow), meta.ExpiresAt)
	assert.Equal(t, start.Add(HardCap), meta.MaxExpiresAt, "hard cap never moves")
}

func TestExtendAtReminderKeepsFullWindow(t *testing.T) {
	start := time.Now()
	timers := StartSession(start, SessionConfig{}, TimerCallbacks{})
	defer timers.Stop()

	// Extending when the reminder fires must not shave ReminderLead off the
	// next window: the base is the old expiry, not the extension time.
	atReminder := start.Add(SoftWindow - ReminderLead)
	require.True(t, timers.Extend(atReminder))
	assert.Equal(t, start.Add(SoftWindow).Add(SoftWindow), timers.Meta().ExpiresAt)
}

func TestExtendClampsToHardCap(t *testing.T) {
	start := time.Now()
	timers := StartSession(start, SessionConfig{
		SoftWindow: 5 * time.Hour,
		HardCap:    12 * time.Hour,
	}, TimerCallbacks{})
	defer timers.Stop()

	// 5h -> 10h, then 10h+5h clamps to the 12h cap.
	require.True(t, timers.Extend(start.Add(4*time.Hour)))
	assert.Equal(t, start.Add(10*time.Hour), timers.Meta().ExpiresAt)
	require.True(t, timers.Extend(start.Add(9*time.Hour)))
	assert.Equal(t, start.Add(12*time.Hour), timers.Meta().ExpiresAt)

	// At the cap the session cannot be extended; state is untouched.
	before := timers.Meta()
	assert.False(t, timers.Extend(start.Add(11*time.Hour)))
	assert.Equal(t, before, timers.Meta())
}

func TestTouchRecordsActivity(t *testing.T) {
	start := time.Now()
	timers := StartSession(start, SessionConfig{}, TimerCallbacks{})
	defer timers.Stop()

	active := start.Add(10 * time.Minute)
	timers.Touch(active)
	assert.Equal(t, active, timers.Meta().LastActivity)
}

func TestExtendAfterStopIsNoop(t *testing.T) {
	start := time.Now()
	timers := StartSession(start, SessionConfig{}, TimerCallbacks{})
	timers.Stop()

	assert.False(t, timers.Extend(start.Add(time.Hour)))
}

func TestResumeSessionRejectsExpiredMeta(t *testing.T) {
	now := time.Now()
	dead := SessionMeta{
		Start:        now.Add(-4 * time.Hour),
		ExpiresAt:    now.Add(-time.Hour),
		MaxExpiresAt: now.Add(8 * time.Hour),
		LastActivity: now.Add(-2 * time.Hour),
	}
	assert.Nil(t, ResumeSession(dead, now, SessionConfig{}, TimerCallbacks{}))

	capped := SessionMeta{
		Start:        now.Add(-13 * time.Hour),
		ExpiresAt:    now.Add(time.Hour),
		MaxExpiresAt: now.Add(-time.Hour),
		LastActivity: now,
	}
	assert.Nil(t, ResumeSession(capped, now, SessionConfig{}, TimerCallbacks{}))
}

func TestResumeSessionKeepsMeta(t *testing.T) {
	now := time.Now()
	meta := SessionMeta{
		Start:        now.Add(-time.Hour),
		ExpiresAt:    now.Add(2 * time.Hour),
		MaxExpiresAt: now.Add(11 * time.Hour),
		LastActivity: now.Add(-5 * time.Minute),
	}
	timers := ResumeSession(meta, now, SessionConfig{}, TimerCallbacks{})
	require.NotNil(t, timers)
	defer timers.Stop()
	assert.Equal(t, meta, timers.Meta())
}

func TestInactivityTimerFires(t *testing.T) {
	fired := make(chan string, 1)
	timers := StartSession(time.Now(), SessionConfig{
		SoftWindow:     time.Hour,
		HardCap:        2 * time.Hour,
		ReminderLead:   time.Minute,
		InactivityIdle: 20 * time.Millisecond,
	}, TimerCallbacks{
		OnTimeout: func(reason string) { fired <- reason },
	})
	defer timers.Stop()

	select {
	case reason := <-fired:
		assert.Equal(t, TimeoutInactive, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("inactivity timer never fired")
	}
}

func TestTouchDefersInactivity(t *testing.T) {
	fired := make(chan string, 1)
	timers := StartSession(time.Now(), SessionConfig{
		SoftWindow:     time.Hour,
		HardCap:        2 * time.Hour,
		ReminderLead:   time.Minute,
		InactivityIdle: 150 * time.Millisecond,
	}, TimerCallbacks{
		OnTimeout: func(reason string) { fired <- reason },
	})
	defer timers.Stop()

	// Keep touching well inside the idle window; the timeout must not fire.
	for i := 0; i < 6; i++ {
		time.Sleep(50 * time.Millisecond)
		timers.Touch(time.Now())
	}
	select {
	case reason := <-fired:
		t.Fatalf("timeout %q fired despite activity", reason)
	default:
	}

	// Once activity stops, it does fire.
	select {
	case reason := <-fired:
		assert.Equal(t, TimeoutInactive, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("inactivity timer never fired after activity ceased")
	}
}

func TestReminderThenExpiry(t *testing.T) {
	events := make(chan string, 4)
	timers := StartSession(time.Now(), SessionConfig{
		SoftWindow:     120 * time.Millisecond,
		HardCap:        time.Hour,
		ReminderLead:   60 * time.Millisecond,
		InactivityIdle: time.Hour,
	}, TimerCallbacks{
		OnReminder: func(time.Duration) { events <- "reminder" },
		OnTimeout:  func(reason string) { events <- reason },
	})
	defer timers.Stop()

	deadline := time.After(2 * time.Second)
	var got []string
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-deadline:
			t.Fatalf("timed out, events so far: %v", got)
		}
	}
	assert.Equal(t, []string{"reminder", TimeoutExpired}, got)
}

func TestStopSuppressesPendingTimers(t *testing.T) {
	fired := make(chan string, 4)
	timers := StartSession(time.Now(), SessionConfig{
		SoftWindow:     30 * time.Millisecond,
		HardCap:        time.Hour,
		ReminderLead:   10 * time.Millisecond,
		InactivityIdle: 30 * time.Millisecond,
	}, TimerCallbacks{
		OnReminder: func(time.Duration) { fired <- "reminder" },
		OnTimeout:  func(reason string) { fired <- reason },
	})
	timers.Stop()

	select {
	case e := <-fired:
		t.Fatalf("callback %q fired after Stop", e)
	case <-time.After(200 * time.Millisecond):
	}
}
