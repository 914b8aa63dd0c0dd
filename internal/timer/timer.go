// Package timer provides a pausable countdown used to decide scrobble
// eligibility and replay detection.
package timer

import (
	"errors"
	"sync"
	"time"
)

// ErrNotStarted is returned when the deadline is changed before Start.
var ErrNotStarted = errors.New("timer not started")

// Timer counts elapsed playback time and fires a callback once the elapsed
// time reaches the deadline. The zero value is ready to use.
type Timer struct {
	mu sync.Mutex

	onExpire func()
	started  bool
	paused   bool
	fired    bool

	elapsed   time.Duration // accumulated up to resumedAt
	resumedAt time.Time

	deadline    time.Duration
	hasDeadline bool

	pending *time.Timer
	gen     uint64
}

// New creates a stopped timer.
func New() *Timer {
	return &Timer{}
}

// Start resets the timer and begins counting from zero without a deadline.
func (t *Timer) Start(onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked()
	t.onExpire = onExpire
	t.started = true
	t.resumedAt = time.Now()
}

// Update sets the deadline to the given elapsed duration. If the deadline is
// already behind, the callback runs synchronously before Update returns.
func (t *Timer) Update(d time.Duration) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return ErrNotStarted
	}

	t.stopPendingLocked()
	t.deadline = d
	t.hasDeadline = true
	t.fired = false

	if t.elapsedLocked() >= d {
		cb := t.fireLocked()
		t.mu.Unlock()
		if cb != nil {
			cb()
		}
		return nil
	}

	if !t.paused {
		t.scheduleLocked()
	}
	t.mu.Unlock()
	return nil
}

// UpdateSeconds is Update taking a deadline in seconds. A nil value clears
// the deadline.
func (t *Timer) UpdateSeconds(seconds *float64) error {
	if seconds == nil {
		return t.ClearDeadline()
	}
	return t.Update(time.Duration(*seconds * float64(time.Second)))
}

// ClearDeadline removes the deadline; elapsed time keeps accumulating.
func (t *Timer) ClearDeadline() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return ErrNotStarted
	}
	t.stopPendingLocked()
	t.hasDeadline = false
	t.fired = false
	return nil
}

// Pause freezes elapsed time. Pausing a paused timer is a no-op.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.paused {
		return
	}
	t.elapsed += time.Since(t.resumedAt)
	t.paused = true
	t.stopPendingLocked()
}

// Resume continues counting after Pause. Resuming a running timer is a no-op.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || !t.paused {
		return
	}
	t.paused = false
	t.resumedAt = time.Now()
	if t.hasDeadline && !t.fired {
		t.scheduleLocked()
	}
}

// Reset stops the timer without firing the callback.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// IsExpired reports whether elapsed time has reached the deadline.
func (t *Timer) IsExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && t.hasDeadline && t.elapsedLocked() >= t.deadline
}

// Remaining returns the time left until the deadline. The second value is
// false when no deadline is set.
func (t *Timer) Remaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || !t.hasDeadline {
		return 0, false
	}
	return max(t.deadline-t.elapsedLocked(), 0), true
}

// RemainingSeconds is Remaining expressed in seconds.
func (t *Timer) RemainingSeconds() (float64, bool) {
	d, ok := t.Remaining()
	return d.Seconds(), ok
}

// Elapsed returns the counted playback time.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	return t.elapsedLocked()
}

func (t *Timer) elapsedLocked() time.Duration {
	if t.paused {
		return t.elapsed
	}
	return t.elapsed + time.Since(t.resumedAt)
}

func (t *Timer) resetLocked() {
	t.stopPendingLocked()
	t.onExpire = nil
	t.started = false
	t.paused = false
	t.fired = false
	t.elapsed = 0
	t.hasDeadline = false
	t.deadline = 0
}

func (t *Timer) stopPendingLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) scheduleLocked() {
	t.stopPendingLocked()
	gen := t.gen
	wait := max(t.deadline-t.elapsedLocked(), 0)
	t.pending = time.AfterFunc(wait, func() { t.expire(gen) })
}

// expire runs on the AfterFunc goroutine. Stale generations are ignored so a
// Stop that lost the race never fires the callback.
func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.started || t.paused || !t.hasDeadline {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	cb := t.fireLocked()
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// fireLocked marks the current cycle as fired and returns the callback to
// invoke outside the lock, or nil if this cycle already fired.
func (t *Timer) fireLocked() func() {
	if t.fired {
		return nil
	}
	t.fired = true
	return t.onExpire
}
