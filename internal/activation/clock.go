package activation

import "time"

// Clock abstracts wall-clock time so the state machine's cooldowns and
// VAD windows are deterministically testable, per spec.md §9's
// "coroutine/async flow" redesign note.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run after d and returns a Timer that can
	// be stopped. Production code uses time.AfterFunc; tests use a
	// virtual clock that fires timers when advanced explicitly.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of time.Timer the state machine needs.
type Timer interface {
	Stop() bool
}

// RealClock is the production Clock backed by the system clock and
// real timers.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }
