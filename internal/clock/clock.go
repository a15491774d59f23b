// Package clock abstracts wall-clock time so timed behaviour can be tested.
package clock

import (
	"sync"
	"time"
)

// Clock provides the time operations used by the control loops.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
}

// Real implements Clock with the time package.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

// Sleep pauses the current goroutine for at least d.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Mock is a manually driven clock. Sleep advances it instead of blocking.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMock creates a Mock set to t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mocked time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Since returns the mocked duration since t.
func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Sleep records d and advances the clock by it.
func (m *Mock) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	m.now = m.now.Add(d)
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Sleeps returns a copy of every duration passed to Sleep.
func (m *Mock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}
