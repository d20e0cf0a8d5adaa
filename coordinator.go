package auth

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshCooldown is the minimum spacing between two refresh
// executions against the remote service.
const DefaultRefreshCooldown = 5 * time.Second

// Coordinator protects the remote call surface from refresh storms. It is
// not a cache: it only dedupes and spaces out executions of the run
// function handed to it.
//
// Invariants:
//   - At most one execution is in flight; a request arriving while one is
//     running is dropped, not queued.
//   - Two execution start times are never closer than the cooldown. A
//     request inside the cooldown is rescheduled to fire exactly at the
//     boundary, replacing any previously scheduled one.
type Coordinator struct {
	mu       sync.Mutex
	inFlight bool
	lastRun  time.Time
	pending  Timer
	cooldown time.Duration
	clock    Clock
	logger   Logger
	run      func(ctx context.Context)
}

// CoordinatorOption customizes coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorClock injects a custom clock (useful for tests).
func WithCoordinatorClock(clock Clock) CoordinatorOption {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCooldown overrides the spacing between executions.
func WithCooldown(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithCoordinatorLogger overrides the logger.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator wraps run with dedup and cooldown enforcement.
func NewCoordinator(run func(ctx context.Context), opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		cooldown: DefaultRefreshCooldown,
		clock:    SystemClock(),
		logger:   defLogger{},
		run:      run,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Refresh requests an execution. Safe to call concurrently from any number
// of call sites; callers must not assume their specific invocation ran.
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()

	if c.inFlight {
		c.logger.Debug("session refresh already in progress, skipping")
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	if !c.lastRun.IsZero() {
		if elapsed := now.Sub(c.lastRun); elapsed < c.cooldown {
			c.logger.Debug("rate limiting session refresh (last refresh %s ago)", elapsed)
			if c.pending != nil {
				c.pending.Stop()
			}
			// The scheduled call must survive the caller's request scope.
			deferred := context.WithoutCancel(ctx)
			c.pending = c.clock.AfterFunc(c.cooldown-elapsed, func() {
				c.execute(deferred)
			})
			c.mu.Unlock()
			return
		}
	}

	// Executing now supersedes anything previously scheduled.
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}

	c.mu.Unlock()
	c.execute(ctx)
}

// Stop cancels any scheduled execution. In-flight work is not interrupted.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Coordinator) execute(ctx context.Context) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return
	}

	// A scheduled timer that could not be stopped in time lands here after
	// a direct execution already ran; the spacing invariant still holds.
	now := c.clock.Now()
	if !c.lastRun.IsZero() && now.Sub(c.lastRun) < c.cooldown {
		c.mu.Unlock()
		return
	}

	c.inFlight = true
	c.lastRun = now
	c.pending = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	c.run(ctx)
}
