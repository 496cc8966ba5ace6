// Package fake implements a fake board with in-memory I2C devices, read-back GPIO pins, a stepping
// timer and a simulated ultrasonic module. It backs the tests and simulated runs.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/components/board/genericlinux/buses"
	"go.viam.com/sonarimu/logging"
)

// DefaultI2CName is the bus a fake board creates when its config names none.
const DefaultI2CName = "main"

var _ board.Board = (*Board)(nil)

// A Board provides dummy data from fake parts in order to implement a board.
type Board struct {
	mu       sync.Mutex
	I2Cs     map[string]*I2C
	GPIOPins map[string]board.GPIOPin
	timer    *Timer
	logger   logging.Logger

	CloseCount int
}

// NewBoard returns a new fake board. A nil config yields a board with a single bus named "main".
func NewBoard(conf *board.Config, logger logging.Logger) (*Board, error) {
	b := &Board{
		I2Cs:     map[string]*I2C{},
		GPIOPins: map[string]board.GPIOPin{},
		timer:    NewTimer(DefaultTicksPerSecond, 1),
		logger:   logger,
	}

	if conf != nil {
		if conf.Model != "" && conf.Model != board.ModelFake {
			return nil, errors.Errorf("cannot build a fake board from a %q config", conf.Model)
		}
		for _, c := range conf.I2Cs {
			b.I2Cs[c.Name] = NewI2C()
		}
	}
	if len(b.I2Cs) == 0 {
		b.I2Cs[DefaultI2CName] = NewI2C()
	}
	logger.Debugf("built fake board with %d i2c bus(es)", len(b.I2Cs))
	return b, nil
}

// I2CByName returns the i2c by the given name if it exists.
func (b *Board) I2CByName(name string) (buses.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.I2Cs[name]
	if !ok {
		return nil, false
	}
	return bus, true
}

// GPIOPinByName returns the GPIO pin by the given name, creating a read-back pin if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		pin := &GPIOPin{}
		b.GPIOPins[name] = pin
		return pin, nil
	}
	return p, nil
}

// Timer returns the board's fake timer.
func (b *Board) Timer() board.Timer {
	return b.timer
}

// FakeTimer returns the board's timer with its fake-only controls.
func (b *Board) FakeTimer() *Timer {
	return b.timer
}

// AttachRanger wires a simulated ultrasonic module to the named trigger and echo pins.
func (b *Board) AttachRanger(triggerPin, echoPin string, distanceMeters float64) *Ranger {
	r := NewRanger(b.timer, distanceMeters)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.GPIOPins[triggerPin] = r.TriggerPin()
	b.GPIOPins[echoPin] = r.EchoPin()
	return r
}

// Close attempts to cleanly close each part of the board.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++
	return nil
}
