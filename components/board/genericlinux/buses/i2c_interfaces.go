// Package buses offers the I2C transport capability and the register transactor built on it.
package buses

import (
	"context"
)

// I2C represents a shareable I2C bus on the board.
//
// Each call is one physical bus operation against the 7-bit device address. When holdBus is true
// the operation ends without a stop condition, so the next operation continues the same
// transaction with a repeated start. The number of bytes moved is the length of the buffer.
type I2C interface {
	Write(ctx context.Context, addr byte, tx []byte, holdBus bool) error
	Read(ctx context.Context, addr byte, rx []byte, holdBus bool) error
}

// An I2CRegister is a lightweight wrapper around a transactor for a particular device register.
type I2CRegister struct {
	Transactor *Transactor
	Address    byte
	Register   byte
}

// ReadByteData reads a byte from the register.
func (reg *I2CRegister) ReadByteData(ctx context.Context) (byte, error) {
	return reg.Transactor.ReadRegister(ctx, reg.Address, reg.Register)
}

// WriteByteData writes a byte to the register.
func (reg *I2CRegister) WriteByteData(ctx context.Context, data byte) error {
	return reg.Transactor.WriteRegister(ctx, reg.Address, reg.Register, data)
}
