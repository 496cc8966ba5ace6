package buses

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoAck is returned when the addressed device does not acknowledge a bus operation.
	ErrNoAck = errors.New("device did not acknowledge")
	// ErrTimeout is returned when a transaction does not complete before its deadline.
	ErrTimeout = errors.New("transaction timed out")
	// ErrBusy is returned when a transaction is started while another one is still in flight.
	ErrBusy = errors.New("another transaction is in flight")
)

// Phase names the bus operation a TransactionError happened in.
type Phase string

const (
	// PhaseAddress is the sub-address write that precedes a register read.
	PhaseAddress Phase = "address"
	// PhaseRead is the data read of a register read.
	PhaseRead Phase = "read"
	// PhaseWrite is a contiguous register or block write.
	PhaseWrite Phase = "write"
	// PhaseBegin is the ownership check before any bytes move.
	PhaseBegin Phase = "begin"
)

// TransactionError describes a failed register transaction. It matches exactly one of ErrNoAck,
// ErrTimeout or ErrBusy with errors.Is, and also unwraps to the transport's own error.
type TransactionError struct {
	Phase    Phase
	Address  byte
	Register byte
	Kind     error
	Err      error
}

func (e *TransactionError) Error() string {
	msg := fmt.Sprintf("i2c %s phase, device 0x%02x register 0x%02x: %v", e.Phase, e.Address, e.Register, e.Kind)
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the error kind and the underlying transport error.
func (e *TransactionError) Unwrap() []error {
	if e.Err == nil || e.Err == e.Kind {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify maps a transport failure onto the bus error taxonomy. An expired or canceled context
// counts as a timeout; anything else is a missing acknowledge.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNoAck):
		return ErrNoAck
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled), ctx.Err() != nil:
		return ErrTimeout
	default:
		return ErrNoAck
	}
}
