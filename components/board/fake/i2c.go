package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/sonarimu/components/board/genericlinux/buses"
)

// A Transaction is one bus operation observed by a fake I2C bus.
type Transaction struct {
	Read    bool
	Address byte
	Data    []byte
	HoldBus bool
}

// I2C is a fake I2C bus that serves register-mapped devices from memory.
type I2C struct {
	mu      sync.Mutex
	devices map[byte]*I2CDevice
	log     []Transaction
}

// NewI2C returns an empty fake bus.
func NewI2C() *I2C {
	return &I2C{devices: map[byte]*I2CDevice{}}
}

// AddDevice attaches a register device at the given address, replacing any existing one.
func (bus *I2C) AddDevice(addr byte) *I2CDevice {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev := &I2CDevice{}
	bus.devices[addr] = dev
	return dev
}

// Device returns the device at the given address, if any.
func (bus *I2C) Device(addr byte) (*I2CDevice, bool) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev, ok := bus.devices[addr]
	return dev, ok
}

// Transactions returns every operation observed so far.
func (bus *I2C) Transactions() []Transaction {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return append([]Transaction(nil), bus.log...)
}

// ClearTransactions forgets the recorded operations.
func (bus *I2C) ClearTransactions() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.log = nil
}

// Write sets the device's register pointer from the first byte and stores any remaining bytes
// starting there, auto-incrementing.
func (bus *I2C) Write(ctx context.Context, addr byte, tx []byte, holdBus bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.log = append(bus.log, Transaction{Address: addr, Data: append([]byte(nil), tx...), HoldBus: holdBus})

	dev, ok := bus.devices[addr]
	if !ok {
		return errors.Wrapf(buses.ErrNoAck, "no device at address 0x%02x", addr)
	}
	return dev.write(tx)
}

// Read copies registers starting at the device's register pointer, auto-incrementing.
func (bus *I2C) Read(ctx context.Context, addr byte, rx []byte, holdBus bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()

	dev, ok := bus.devices[addr]
	if !ok {
		bus.log = append(bus.log, Transaction{Read: true, Address: addr, HoldBus: holdBus})
		return errors.Wrapf(buses.ErrNoAck, "no device at address 0x%02x", addr)
	}
	err := dev.read(rx)
	bus.log = append(bus.log, Transaction{Read: true, Address: addr, Data: append([]byte(nil), rx...), HoldBus: holdBus})
	return err
}

// An I2CDevice is a fake register-mapped device: 256 byte-wide registers behind an
// auto-incrementing register pointer.
type I2CDevice struct {
	mu        sync.Mutex
	registers [256]byte
	pointer   byte
	err       error
	writes    map[byte]int
}

// SetRegister stores a register value directly, bypassing the bus.
func (dev *I2CDevice) SetRegister(register, value byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.registers[register] = value
}

// Register returns the current value of a register.
func (dev *I2CDevice) Register(register byte) byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.registers[register]
}

// WriteCount returns how many bus writes have landed on a register.
func (dev *I2CDevice) WriteCount(register byte) int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.writes[register]
}

// SetError makes every following operation on the device fail with err. Pass nil to recover.
func (dev *I2CDevice) SetError(err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.err = err
}

func (dev *I2CDevice) write(tx []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.err != nil {
		return dev.err
	}
	if len(tx) == 0 {
		return nil
	}
	dev.pointer = tx[0]
	for _, b := range tx[1:] {
		dev.registers[dev.pointer] = b
		if dev.writes == nil {
			dev.writes = map[byte]int{}
		}
		dev.writes[dev.pointer]++
		dev.pointer++
	}
	return nil
}

func (dev *I2CDevice) read(rx []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.err != nil {
		return dev.err
	}
	for i := range rx {
		rx[i] = dev.registers[dev.pointer]
		dev.pointer++
	}
	return nil
}
