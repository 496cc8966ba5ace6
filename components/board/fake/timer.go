package fake

import (
	"go.uber.org/atomic"
)

// DefaultTicksPerSecond is the rate of a fake timer unless told otherwise: one tick per microsecond.
const DefaultTicksPerSecond = 1000000

// A Timer is a fake monotonic timer that moves forward by a fixed step every time it is read, so
// that busy-wait loops always make progress without any wall clock involved.
type Timer struct {
	ticksPerSecond uint64
	step           uint64
	now            atomic.Uint64
	last           atomic.Uint64
}

// NewTimer returns a timer at tick zero running at ticksPerSecond, advancing step ticks per read.
func NewTimer(ticksPerSecond, step uint64) *Timer {
	return &Timer{ticksPerSecond: ticksPerSecond, step: step}
}

// Now returns the current tick and then advances the timer by its step.
func (t *Timer) Now() uint64 {
	tick := t.now.Add(t.step) - t.step
	t.last.Store(tick)
	return tick
}

// Last returns the tick most recently returned by Now, without advancing.
func (t *Timer) Last() uint64 {
	return t.last.Load()
}

// Set moves the timer to an absolute tick. Moving backwards is the caller's responsibility.
func (t *Timer) Set(tick uint64) {
	t.now.Store(tick)
	t.last.Store(tick)
}

// Advance moves the timer forward by n ticks.
func (t *Timer) Advance(n uint64) {
	t.now.Add(n)
}

// TicksPerSecond returns the timer's rate.
func (t *Timer) TicksPerSecond() uint64 {
	return t.ticksPerSecond
}
