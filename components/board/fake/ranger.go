package fake

import (
	"context"
	"math"
	"sync"

	"go.viam.com/sonarimu/components/board"
)

// speedOfSound is what the simulated module assumes, in meters per second.
const speedOfSound = 343.0

// A Ranger simulates an HC-SR04 style ultrasonic module wired to two pins. A falling edge on the
// trigger pin, after it has been high, schedules an echo pulse whose width is the round-trip time
// of flight to an obstacle at the configured distance. Timing follows a fake Timer.
type Ranger struct {
	timer *Timer

	mu          sync.Mutex
	distance    float64
	echoDelay   uint64
	silent      bool
	triggerHigh bool
	triggers    int
	rise, fall  uint64
	armed       bool
}

// NewRanger returns a simulated module reporting the given distance in meters.
func NewRanger(timer *Timer, distanceMeters float64) *Ranger {
	return &Ranger{timer: timer, distance: distanceMeters, echoDelay: 1}
}

// SetDistance changes the simulated obstacle distance for the next trigger.
func (r *Ranger) SetDistance(distanceMeters float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distance = distanceMeters
}

// SetEchoDelay sets how many ticks after the trigger's falling edge the echo pulse starts.
func (r *Ranger) SetEchoDelay(ticks uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.echoDelay = ticks
}

// SetSilent makes the module ignore triggers, so the echo pin never rises.
func (r *Ranger) SetSilent(silent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silent = silent
}

// Triggers returns how many complete trigger pulses the module has seen.
func (r *Ranger) Triggers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.triggers
}

// RoundTripTicks is the echo pulse width for the current distance.
func (r *Ranger) RoundTripTicks() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roundTripTicks()
}

func (r *Ranger) roundTripTicks() uint64 {
	seconds := 2 * r.distance / speedOfSound
	return uint64(math.Round(seconds * float64(r.timer.TicksPerSecond())))
}

// TriggerPin returns the pin to wire as the module's trigger input.
func (r *Ranger) TriggerPin() board.GPIOPin {
	return &rangerTrigger{r}
}

// EchoPin returns the pin to wire as the module's echo output.
func (r *Ranger) EchoPin() board.GPIOPin {
	return &rangerEcho{r}
}

type rangerTrigger struct {
	r *Ranger
}

func (p *rangerTrigger) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	r := p.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if high {
		r.triggerHigh = true
		return nil
	}
	if r.triggerHigh {
		r.triggers++
		if !r.silent {
			r.rise = r.timer.Last() + r.echoDelay
			r.fall = r.rise + r.roundTripTicks()
			r.armed = true
		}
	}
	r.triggerHigh = false
	return nil
}

func (p *rangerTrigger) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	return p.r.triggerHigh, nil
}

type rangerEcho struct {
	r *Ranger
}

func (p *rangerEcho) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	return nil
}

func (p *rangerEcho) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	r := p.r
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return false, nil
	}
	now := r.timer.Last()
	return now >= r.rise && now < r.fall, nil
}
