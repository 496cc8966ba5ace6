package buses

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"go.viam.com/sonarimu/logging"
)

// DefaultTransactionTimeout bounds a whole register transaction, both phases included.
const DefaultTransactionTimeout = 10 * time.Millisecond

// Transactor frames register-addressed accesses as ordered operations on an I2C bus.
//
// A Transactor owns its bus: at most one transaction is in flight at a time. A call made while
// another is running fails immediately with ErrBusy rather than waiting, so callers sharing the bus
// between several drivers must serialize their calls. Nothing is retried.
type Transactor struct {
	bus      I2C
	timeout  time.Duration
	logger   logging.Logger
	inFlight atomic.Bool
}

// TransactorOption configures a Transactor.
type TransactorOption func(*Transactor)

// WithTransactionTimeout sets the deadline applied to each transaction. Zero or negative values
// leave only the caller's context deadline in effect.
func WithTransactionTimeout(timeout time.Duration) TransactorOption {
	return func(t *Transactor) {
		t.timeout = timeout
	}
}

// WithLogger makes the transactor trace every transaction at debug level.
func WithLogger(logger logging.Logger) TransactorOption {
	return func(t *Transactor) {
		t.logger = logger
	}
}

// NewTransactor returns a Transactor for the given bus.
func NewTransactor(bus I2C, opts ...TransactorOption) *Transactor {
	t := &Transactor{bus: bus, timeout: DefaultTransactionTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// begin claims the bus. The returned function releases it and cancels the transaction deadline.
func (t *Transactor) begin(ctx context.Context) (context.Context, func(), error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}
	cancel := func() {}
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	return ctx, func() {
		cancel()
		t.inFlight.Store(false)
	}, nil
}

// ReadRegister reads one byte from a device register. The sub-address is written with the bus
// held, then a single byte is read and the bus released.
func (t *Transactor) ReadRegister(ctx context.Context, addr, register byte) (byte, error) {
	txCtx, done, err := t.begin(ctx)
	if err != nil {
		return 0, &TransactionError{Phase: PhaseBegin, Address: addr, Register: register, Kind: err}
	}
	defer done()

	if err := t.bus.Write(txCtx, addr, []byte{register}, true); err != nil {
		return 0, t.fail(txCtx, PhaseAddress, addr, register, err)
	}
	rx := make([]byte, 1)
	if err := t.bus.Read(txCtx, addr, rx, false); err != nil {
		return 0, t.fail(txCtx, PhaseRead, addr, register, err)
	}
	if t.logger != nil {
		t.logger.Debugw("i2c read", "address", addr, "register", register, "value", rx[0])
	}
	return rx[0], nil
}

// WriteRegister writes one byte to a device register as a single contiguous two-byte write.
func (t *Transactor) WriteRegister(ctx context.Context, addr, register, value byte) error {
	txCtx, done, err := t.begin(ctx)
	if err != nil {
		return &TransactionError{Phase: PhaseBegin, Address: addr, Register: register, Kind: err}
	}
	defer done()

	if err := t.bus.Write(txCtx, addr, []byte{register, value}, false); err != nil {
		return t.fail(txCtx, PhaseWrite, addr, register, err)
	}
	if t.logger != nil {
		t.logger.Debugw("i2c write", "address", addr, "register", register, "value", value)
	}
	return nil
}

// WriteBlock writes data to the device in one transaction, releasing the bus at the end. By
// convention the first byte is the starting sub-address.
func (t *Transactor) WriteBlock(ctx context.Context, addr byte, data []byte) error {
	var register byte
	if len(data) > 0 {
		register = data[0]
	}
	txCtx, done, err := t.begin(ctx)
	if err != nil {
		return &TransactionError{Phase: PhaseBegin, Address: addr, Register: register, Kind: err}
	}
	defer done()

	tx := make([]byte, len(data))
	copy(tx, data)
	if err := t.bus.Write(txCtx, addr, tx, false); err != nil {
		return t.fail(txCtx, PhaseWrite, addr, register, err)
	}
	if t.logger != nil {
		t.logger.Debugw("i2c block write", "address", addr, "length", len(tx))
	}
	return nil
}

func (t *Transactor) fail(ctx context.Context, phase Phase, addr, register byte, err error) error {
	txErr := &TransactionError{
		Phase:    phase,
		Address:  addr,
		Register: register,
		Kind:     classify(ctx, err),
		Err:      err,
	}
	if t.logger != nil {
		t.logger.Debugw("i2c transaction failed", "error", txErr)
	}
	return txErr
}
