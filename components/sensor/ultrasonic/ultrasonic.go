// Package ultrasonic implements an HC-SR04 style ultrasonic range sensor driven by two GPIO pins
// and timed with the board's monotonic timer.
package ultrasonic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/logging"
)

// SpeedOfSound in dry air at about 20 C, in meters per second.
const SpeedOfSound = 343.0

// DefaultTimeout bounds the wait for each echo edge when the config sets none.
const DefaultTimeout = time.Second

const (
	settleDuration       = 2 * time.Microsecond
	triggerPulseDuration = 10 * time.Microsecond
)

// ErrEchoTimeout is matched by the error Measure returns when an echo edge does not arrive in time.
var ErrEchoTimeout = errors.New("timed out waiting for echo")

// Edge names one of the two echo transitions a measurement waits for.
type Edge string

// The echo edges.
const (
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
)

// EchoTimeoutError reports which echo edge was missed. Err is the context error if the caller's
// context ended the wait.
type EchoTimeoutError struct {
	Edge Edge
	Err  error
}

func (e *EchoTimeoutError) Error() string {
	msg := fmt.Sprintf("%v %s edge", ErrEchoTimeout, e.Edge)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrEchoTimeout) hold.
func (e *EchoTimeoutError) Is(target error) bool {
	return target == ErrEchoTimeout
}

func (e *EchoTimeoutError) Unwrap() error {
	return e.Err
}

// A PulseWindow holds the timer ticks of the echo's rising and falling edges.
type PulseWindow struct {
	Start uint64
	End   uint64
}

// Duration returns the pulse width in seconds. A window that ends before it starts is empty.
func (w PulseWindow) Duration(ticksPerSecond uint64) float64 {
	if w.End <= w.Start || ticksPerSecond == 0 {
		return 0
	}
	return float64(w.End-w.Start) / float64(ticksPerSecond)
}

// DistanceFromDuration converts a round-trip echo time in seconds to the one-way distance in
// meters.
func DistanceFromDuration(seconds float64) float64 {
	return seconds * SpeedOfSound / 2
}

// Config is used for converting config attributes.
type Config struct {
	TriggerPin string `json:"trigger_pin" yaml:"trigger_pin"`
	EchoPin    string `json:"echo_pin" yaml:"echo_pin"`
	TimeoutMs  uint   `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if len(config.TriggerPin) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "trigger_pin")
	}
	if len(config.EchoPin) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "echo_pin")
	}
	if config.TriggerPin == config.EchoPin {
		return utils.NewConfigValidationError(path, errors.New("trigger_pin and echo_pin must differ"))
	}
	return nil
}

// Timeout returns the configured per-edge timeout, or DefaultTimeout.
func (config *Config) Timeout() time.Duration {
	if config.TimeoutMs == 0 {
		return DefaultTimeout
	}
	return time.Duration(config.TimeoutMs) * time.Millisecond
}

// Sensor is an ultrasonic sensor. Each measurement is a complete trigger and listen cycle; nothing
// is carried over between calls.
type Sensor struct {
	mu         sync.Mutex
	triggerPin board.GPIOPin
	echoPin    board.GPIOPin
	timer      board.Timer
	timeout    time.Duration
	logger     logging.Logger
}

// NewSensor returns a sensor on the given pins, bounding each echo wait by timeout.
func NewSensor(trigger, echo board.GPIOPin, timer board.Timer, timeout time.Duration, logger logging.Logger) *Sensor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sensor{triggerPin: trigger, echoPin: echo, timer: timer, timeout: timeout, logger: logger}
}

// New looks up the configured pins on the board and drives the trigger pin low.
func New(ctx context.Context, b board.Board, config *Config, logger logging.Logger) (*Sensor, error) {
	logger.Debug("building ultrasonic sensor")
	trigger, err := b.GPIOPinByName(config.TriggerPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab gpio %q", config.TriggerPin)
	}
	echo, err := b.GPIOPinByName(config.EchoPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab gpio %q", config.EchoPin)
	}
	if err := trigger.Set(ctx, false, nil); err != nil {
		return nil, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}
	return NewSensor(trigger, echo, b.Timer(), config.Timeout(), logger), nil
}

// hold spins on the timer for at least d.
func (s *Sensor) hold(d time.Duration) {
	start := s.timer.Now()
	ticks := board.TicksFor(s.timer, d)
	for s.timer.Now()-start < ticks {
	}
}

// waitForEcho polls the echo pin until it reads level, returning the tick sampled just before the
// matching read. The wait gives up after the sensor's timeout or when ctx is done.
func (s *Sensor) waitForEcho(ctx context.Context, level bool, edge Edge) (uint64, error) {
	start := s.timer.Now()
	limit := board.TicksFor(s.timer, s.timeout)
	for {
		tick := s.timer.Now()
		high, err := s.echoPin.Get(ctx, nil)
		if err != nil {
			return 0, errors.Wrap(err, "ultrasonic: cannot read echo pin")
		}
		if high == level {
			return tick, nil
		}
		if tick-start >= limit {
			return 0, &EchoTimeoutError{Edge: edge}
		}
		if err := ctx.Err(); err != nil {
			return 0, &EchoTimeoutError{Edge: edge, Err: err}
		}
	}
}

// MeasurePulse sends one trigger pulse and times the echo.
func (s *Sensor) MeasurePulse(ctx context.Context) (PulseWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A low period first guarantees a clean rising edge on the trigger.
	if err := s.triggerPin.Set(ctx, false, nil); err != nil {
		return PulseWindow{}, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}
	s.hold(settleDuration)
	if err := s.triggerPin.Set(ctx, true, nil); err != nil {
		return PulseWindow{}, errors.Wrap(err, "ultrasonic: cannot set trigger pin to high")
	}
	s.hold(triggerPulseDuration)
	if err := s.triggerPin.Set(ctx, false, nil); err != nil {
		return PulseWindow{}, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}

	start, err := s.waitForEcho(ctx, true, EdgeRising)
	if err != nil {
		return PulseWindow{}, err
	}
	end, err := s.waitForEcho(ctx, false, EdgeFalling)
	if err != nil {
		return PulseWindow{}, err
	}
	return PulseWindow{Start: start, End: end}, nil
}

// Measure returns the distance to the nearest obstacle in meters.
func (s *Sensor) Measure(ctx context.Context) (float64, error) {
	w, err := s.MeasurePulse(ctx)
	if err != nil {
		return 0, err
	}
	distance := DistanceFromDuration(w.Duration(s.timer.TicksPerSecond()))
	s.logger.Debugw("echo pulse", "start", w.Start, "end", w.End, "distance_m", distance)
	return distance, nil
}

// Readings returns the measured distance.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	distance, err := s.Measure(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"distance": distance}, nil
}
