// Package clock provides the single source of "now" for scheduling,
// bucketing, and sync watermarking. Components never read the ambient
// clock directly; they take a Clock so day rollovers and due-date math
// are deterministic under test.
package clock

import "time"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the real clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a settable clock for tests and day-rollover simulation.
type Fixed struct {
	Current time.Time
}

// NewFixed returns a Fixed clock starting at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{Current: t}
}

func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the whole calendar days from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}
