// Package clock supplies the wall-clock timestamps used for hold expiry.
//
// Expiry comparisons are made against the engine's clock, never the storage
// server's, so every backend evaluates liveness against the same instant.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Implementations must be safe for
// concurrent use and should return UTC.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System returns the process wall clock truncated to millisecond precision,
// matching what Mongo can round-trip.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Manual is a clock that only moves when told to. It is used by tests to
// drive expiry deterministically.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}
