package clock

import (
	"slices"
	"sync"
	"time"
)

// Manual provides a controllable clock for deterministic tests. Due timers
// fire synchronously from Advance, outside the clock's lock.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	m  *Manual
	at time.Time
	f  func()
}

// NewManual constructs a Manual clock starting at the supplied time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f for when the clock has advanced by d. A
// non-positive d fires on the next Advance.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{m: m, at: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward by d and fires any due timers in deadline
// order.
func (m *Manual) Advance(d time.Duration) time.Time {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due []*manualTimer
	remaining := m.timers[:0]
	for _, t := range m.timers {
		if t.at.After(now) {
			remaining = append(remaining, t)
			continue
		}
		due = append(due, t)
	}
	m.timers = remaining
	m.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *manualTimer) int {
		return a.at.Compare(b.at)
	})
	for _, t := range due {
		t.f()
	}
	return now
}

// Set jumps to an absolute time, firing anything that falls due.
func (m *Manual) Set(at time.Time) time.Time {
	return m.Advance(at.Sub(m.Now()))
}

// Pending returns the number of scheduled timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Next returns the deadline of the earliest pending timer.
func (m *Manual) Next() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next time.Time
	for _, t := range m.timers {
		if next.IsZero() || t.at.Before(next) {
			next = t.at
		}
	}
	return next, !next.IsZero()
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	for i, other := range t.m.timers {
		if other == t {
			t.m.timers = append(t.m.timers[:i], t.m.timers[i+1:]...)
			return true
		}
	}
	return false
}
