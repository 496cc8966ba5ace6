package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"

	"go.viam.com/sonarimu/components/board"
)

var _ board.GPIOPin = (*periphGpioPin)(nil)

type pinMode int

const (
	pinModeUnset pinMode = iota
	pinModeOutput
	pinModeInput
)

// periphGpioPin drives or samples a single periph.io pin. A pin becomes an output the first time
// it is set. A pin that has never been set is configured as a pulled-down input on its first read.
type periphGpioPin struct {
	name string
	pin  gpio.PinIO

	mu   sync.Mutex
	mode pinMode
}

func (gp *periphGpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	l := gpio.Low
	if high {
		l = gpio.High
	}
	if err := gp.pin.Out(l); err != nil {
		return errors.Wrapf(err, "setting pin %s", gp.name)
	}
	gp.mode = pinModeOutput
	return nil
}

func (gp *periphGpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.mode == pinModeUnset {
		if err := gp.pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return false, errors.Wrapf(err, "configuring pin %s as input", gp.name)
		}
		gp.mode = pinModeInput
	}
	return gp.pin.Read() == gpio.High, nil
}

// Close leaves an output pin low.
func (gp *periphGpioPin) Close() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.mode != pinModeOutput {
		return nil
	}
	return gp.pin.Out(gpio.Low)
}
