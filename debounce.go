package auth

import (
	"sync"
	"time"
)

// debouncer collapses bursts of calls into one effective call. A call after
// a quiet period runs immediately; a call inside the window replaces any
// pending timer and fires once the remaining wait elapses (trailing edge).
// State is held explicitly rather than closed over, so it can be inspected
// and stopped.
type debouncer struct {
	mu       sync.Mutex
	wait     time.Duration
	clock    Clock
	fn       func()
	lastCall time.Time
	timer    Timer
}

func newDebouncer(wait time.Duration, clock Clock, fn func()) *debouncer {
	return &debouncer{
		wait:  wait,
		clock: clock,
		fn:    fn,
	}
}

func (d *debouncer) Call() {
	d.mu.Lock()

	now := d.clock.Now()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	elapsed := now.Sub(d.lastCall)
	if d.lastCall.IsZero() || elapsed >= d.wait {
		d.lastCall = now
		d.mu.Unlock()
		d.fn()
		return
	}

	d.timer = d.clock.AfterFunc(d.wait-elapsed, func() {
		d.mu.Lock()
		d.lastCall = d.clock.Now()
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
	d.mu.Unlock()
}

// Stop cancels any pending trailing call.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
