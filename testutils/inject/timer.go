package inject

import (
	"go.viam.com/sonarimu/components/board"
)

// Timer is an injected monotonic timer.
type Timer struct {
	board.Timer
	NowFunc            func() uint64
	TicksPerSecondFunc func() uint64
}

// Now calls the injected Now or the real version.
func (t *Timer) Now() uint64 {
	if t.NowFunc == nil {
		return t.Timer.Now()
	}
	return t.NowFunc()
}

// TicksPerSecond calls the injected TicksPerSecond or the real version.
func (t *Timer) TicksPerSecond() uint64 {
	if t.TicksPerSecondFunc == nil {
		return t.Timer.TicksPerSecond()
	}
	return t.TicksPerSecondFunc()
}
