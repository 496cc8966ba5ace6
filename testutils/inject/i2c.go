package inject

import (
	"context"
	"sync"

	"go.viam.com/sonarimu/components/board/genericlinux/buses"
)

// I2C is an injected I2C bus.
type I2C struct {
	buses.I2C
	WriteFunc func(ctx context.Context, addr byte, tx []byte, holdBus bool) error
	ReadFunc  func(ctx context.Context, addr byte, rx []byte, holdBus bool) error

	mu       sync.Mutex
	writeCap []interface{}
	readCap  []interface{}
}

// Write calls the injected Write or the real version.
func (s *I2C) Write(ctx context.Context, addr byte, tx []byte, holdBus bool) error {
	s.mu.Lock()
	s.writeCap = []interface{}{addr, append([]byte(nil), tx...), holdBus}
	s.mu.Unlock()
	if s.WriteFunc == nil {
		return s.I2C.Write(ctx, addr, tx, holdBus)
	}
	return s.WriteFunc(ctx, addr, tx, holdBus)
}

// WriteCap returns the last parameters received by Write, and then clears them.
func (s *I2C) WriteCap() []interface{} {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.writeCap = nil }()
	return s.writeCap
}

// Read calls the injected Read or the real version.
func (s *I2C) Read(ctx context.Context, addr byte, rx []byte, holdBus bool) error {
	s.mu.Lock()
	s.readCap = []interface{}{addr, len(rx), holdBus}
	s.mu.Unlock()
	if s.ReadFunc == nil {
		return s.I2C.Read(ctx, addr, rx, holdBus)
	}
	return s.ReadFunc(ctx, addr, rx, holdBus)
}

// ReadCap returns the last parameters received by Read, and then clears them.
func (s *I2C) ReadCap() []interface{} {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.readCap = nil }()
	return s.readCap
}
