package board

import (
	"time"

	"github.com/benbjohnson/clock"
)

// A Timer is a free-running monotonic counter.
type Timer interface {
	// Now returns the current tick count. It never decreases.
	Now() uint64

	// TicksPerSecond is the fixed rate at which Now advances.
	TicksPerSecond() uint64
}

type clockTimer struct {
	clk   clock.Clock
	start time.Time
}

// NewClockTimer returns a Timer counting nanoseconds elapsed on clk since the call.
func NewClockTimer(clk clock.Clock) Timer {
	return &clockTimer{clk: clk, start: clk.Now()}
}

func (t *clockTimer) Now() uint64 {
	elapsed := t.clk.Since(t.start)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed)
}

func (t *clockTimer) TicksPerSecond() uint64 {
	return uint64(time.Second)
}

// TicksFor converts a duration into ticks of the given timer, rounding down.
func TicksFor(timer Timer, d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	tps := timer.TicksPerSecond()
	return uint64(d/time.Second)*tps + uint64(d%time.Second)*tps/uint64(time.Second)
}
