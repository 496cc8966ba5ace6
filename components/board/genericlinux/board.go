// Package genericlinux implements a Linux board on top of periph.io: I2C buses through the
// kernel's i2c-dev interface and GPIO pins through whatever drivers periph's host package loads.
package genericlinux

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/components/board/genericlinux/buses"
	"go.viam.com/sonarimu/logging"
)

var _ board.Board = (*sysfsBoard)(nil)

type (
	busOpener func(name string) (i2c.BusCloser, error)
	pinByName func(name string) gpio.PinIO
)

type sysfsBoard struct {
	mu        sync.Mutex
	i2cs      map[string]*i2cBus
	gpios     map[string]*periphGpioPin
	pinByName pinByName
	timer     board.Timer
	logger    logging.Logger
}

// NewBoard initializes periph's host drivers and opens every I2C bus in the config.
func NewBoard(conf *board.Config, logger logging.Logger) (board.Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host drivers")
	}
	b, err := newBoard(conf, i2creg.Open, gpioreg.ByName, clock.New(), logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func newBoard(
	conf *board.Config,
	openBus busOpener,
	lookupPin pinByName,
	clk clock.Clock,
	logger logging.Logger,
) (*sysfsBoard, error) {
	if conf.Model != board.ModelGenericLinux {
		return nil, errors.Errorf("cannot build a genericlinux board from a %q config", conf.Model)
	}
	b := &sysfsBoard{
		i2cs:      map[string]*i2cBus{},
		gpios:     map[string]*periphGpioPin{},
		pinByName: lookupPin,
		timer:     board.NewClockTimer(clk),
		logger:    logger,
	}
	for _, c := range conf.I2Cs {
		bus, err := openBus(c.Bus)
		if err != nil {
			return nil, multierr.Combine(
				errors.Wrapf(err, "opening i2c bus %q (%s)", c.Name, c.Bus),
				b.Close(context.Background()),
			)
		}
		b.i2cs[c.Name] = newI2CBus(c.Name, bus)
		logger.Debugf("opened i2c bus %q on %s", c.Name, bus)
	}
	return b, nil
}

func (b *sysfsBoard) I2CByName(name string) (buses.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.i2cs[name]
	if !ok {
		return nil, false
	}
	return bus, true
}

func (b *sysfsBoard) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pin, ok := b.gpios[name]; ok {
		return pin, nil
	}
	p := b.pinByName(name)
	if p == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	pin := &periphGpioPin{name: name, pin: p}
	b.gpios[name] = pin
	return pin, nil
}

func (b *sysfsBoard) Timer() board.Timer {
	return b.timer
}

func (b *sysfsBoard) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for _, pin := range b.gpios {
		err = multierr.Combine(err, pin.Close())
	}
	for _, bus := range b.i2cs {
		err = multierr.Combine(err, bus.Close())
	}
	b.gpios = map[string]*periphGpioPin{}
	b.i2cs = map[string]*i2cBus{}
	return err
}
