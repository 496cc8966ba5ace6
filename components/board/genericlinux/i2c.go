package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"

	"go.viam.com/sonarimu/components/board/genericlinux/buses"
)

var _ buses.I2C = (*i2cBus)(nil)

// i2cBus adapts a periph.io bus to buses.I2C. periph only exposes combined write-then-read
// transfers, so a write that asks to hold the bus is kept pending and sent as the write half of
// the next transfer to the same device. This produces a repeated start on the wire, which is what
// holding the bus means.
type i2cBus struct {
	name string
	bus  i2c.BusCloser

	mu          sync.Mutex
	pendingAddr byte
	pending     []byte
}

func newI2CBus(name string, bus i2c.BusCloser) *i2cBus {
	return &i2cBus{name: name, bus: bus}
}

// Write sends tx to the device, or queues it when holdBus is set.
func (b *i2cBus) Write(ctx context.Context, addr byte, tx []byte, holdBus bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	w, err := b.takePending(addr)
	if err != nil {
		return err
	}
	w = append(w, tx...)
	if holdBus {
		b.pendingAddr = addr
		b.pending = w
		return nil
	}
	return b.tx(addr, w, nil)
}

// Read fills rx from the device, preceded by any held write to the same address.
func (b *i2cBus) Read(ctx context.Context, addr byte, rx []byte, holdBus bool) error {
	if err := ctx.Err(); err != nil {
		b.mu.Lock()
		b.pending = nil
		b.mu.Unlock()
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	w, err := b.takePending(addr)
	if err != nil {
		return err
	}
	return b.tx(addr, w, rx)
}

// takePending returns the held write for addr. A held write to a different device cannot be
// joined with this transfer, so it is flushed on its own first.
func (b *i2cBus) takePending(addr byte) ([]byte, error) {
	if b.pending == nil {
		return nil, nil
	}
	w, pendingAddr := b.pending, b.pendingAddr
	b.pending = nil
	if pendingAddr == addr {
		return w, nil
	}
	if err := b.bus.Tx(uint16(pendingAddr), w, nil); err != nil {
		return nil, errors.Wrapf(err, "i2c bus %s: flushing held write to 0x%02x", b.name, pendingAddr)
	}
	return nil, nil
}

// tx runs one periph transfer. periph transfers cannot be interrupted, so the deadline is only
// checked before starting; a transfer that completes is a success even if the deadline passed
// while it ran, since its bytes are already on the device.
func (b *i2cBus) tx(addr byte, w, r []byte) error {
	if err := b.bus.Tx(uint16(addr), w, r); err != nil {
		return errors.Wrapf(err, "i2c bus %s: transfer to 0x%02x", b.name, addr)
	}
	return nil
}

// Close releases the underlying bus handle.
func (b *i2cBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
	return b.bus.Close()
}
