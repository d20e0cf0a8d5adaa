package auth

import "time"

// Clock abstracts wall time and timer scheduling so the coordinator and
// debouncer are deterministic under test.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancelable scheduled call.
type Timer interface {
	// Stop cancels the timer, reporting whether it was still pending.
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}
