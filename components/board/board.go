// Package board defines the interfaces that typically live on a single-board computer: shareable
// I2C buses, individual GPIO pins and a free-running monotonic timer.
package board

import (
	"context"

	"go.viam.com/sonarimu/components/board/genericlinux/buses"
)

// A Board represents a physical general purpose board that contains buses, pins and a timer.
type Board interface {
	// I2CByName returns an I2C bus by name.
	I2CByName(name string) (buses.I2C, bool)

	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// Timer returns the board's monotonic timer.
	Timer() Timer

	// Close releases every bus and pin the board opened.
	Close(ctx context.Context) error
}
