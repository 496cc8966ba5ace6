package buses_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/sonarimu/components/board/genericlinux/buses"
	"go.viam.com/sonarimu/logging"
	"go.viam.com/sonarimu/testutils/inject"
)

type busOp struct {
	Read bool
	Addr byte
	Data []byte
	Hold bool
}

// recordingBus returns an injected bus that logs every operation and answers reads from rx.
func recordingBus(rx ...byte) (*inject.I2C, *[]busOp) {
	var ops []busOp
	bus := &inject.I2C{}
	bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error {
		ops = append(ops, busOp{Addr: addr, Data: append([]byte(nil), tx...), Hold: holdBus})
		return nil
	}
	bus.ReadFunc = func(ctx context.Context, addr byte, buf []byte, holdBus bool) error {
		n := copy(buf, rx)
		rx = rx[n:]
		ops = append(ops, busOp{Read: true, Addr: addr, Data: append([]byte(nil), buf...), Hold: holdBus})
		return nil
	}
	return bus, &ops
}

func TestReadRegister(t *testing.T) {
	ctx := context.Background()
	bus, ops := recordingBus(0x69)
	logger, logs := logging.NewObservedTestLogger(t)
	tr := buses.NewTransactor(bus, buses.WithLogger(logger))

	value, err := tr.ReadRegister(ctx, 0x6A, 0x0F)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, byte(0x69))

	expected := []busOp{
		{Addr: 0x6A, Data: []byte{0x0F}, Hold: true},
		{Read: true, Addr: 0x6A, Data: []byte{0x69}, Hold: false},
	}
	test.That(t, cmp.Diff(expected, *ops), test.ShouldBeEmpty)
	test.That(t, logs.FilterMessage("i2c read").Len(), test.ShouldEqual, 1)
}

func TestWriteRegister(t *testing.T) {
	ctx := context.Background()
	bus, ops := recordingBus()
	tr := buses.NewTransactor(bus)

	test.That(t, tr.WriteRegister(ctx, 0x6A, 0x10, 0xA0), test.ShouldBeNil)
	expected := []busOp{{Addr: 0x6A, Data: []byte{0x10, 0xA0}, Hold: false}}
	test.That(t, cmp.Diff(expected, *ops), test.ShouldBeEmpty)
}

func TestWriteBlock(t *testing.T) {
	ctx := context.Background()
	bus, ops := recordingBus()
	tr := buses.NewTransactor(bus)

	data := []byte{0x10, 0xA0, 0x80}
	test.That(t, tr.WriteBlock(ctx, 0x6A, data), test.ShouldBeNil)
	data[1] = 0
	expected := []busOp{{Addr: 0x6A, Data: []byte{0x10, 0xA0, 0x80}, Hold: false}}
	test.That(t, cmp.Diff(expected, *ops), test.ShouldBeEmpty)
}

func TestRegisterWrapper(t *testing.T) {
	ctx := context.Background()
	bus, ops := recordingBus(0x07)
	reg := &buses.I2CRegister{Transactor: buses.NewTransactor(bus), Address: 0x6A, Register: 0x1E}

	value, err := reg.ReadByteData(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, byte(0x07))
	test.That(t, reg.WriteByteData(ctx, 0x01), test.ShouldBeNil)
	test.That(t, len(*ops), test.ShouldEqual, 3)
	test.That(t, (*ops)[2].Data, test.ShouldResemble, []byte{0x1E, 0x01})
}

func TestNoAck(t *testing.T) {
	ctx := context.Background()
	nack := errors.New("remote I/O error")

	t.Run("address phase", func(t *testing.T) {
		bus := &inject.I2C{}
		readCalled := false
		bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error { return nack }
		bus.ReadFunc = func(ctx context.Context, addr byte, rx []byte, holdBus bool) error {
			readCalled = true
			return nil
		}
		tr := buses.NewTransactor(bus)

		_, err := tr.ReadRegister(ctx, 0x6A, 0x0F)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeTrue)
		test.That(t, errors.Is(err, buses.ErrTimeout), test.ShouldBeFalse)
		test.That(t, errors.Is(err, nack), test.ShouldBeTrue)
		test.That(t, readCalled, test.ShouldBeFalse)

		var txErr *buses.TransactionError
		test.That(t, errors.As(err, &txErr), test.ShouldBeTrue)
		test.That(t, txErr.Phase, test.ShouldEqual, buses.PhaseAddress)
		test.That(t, txErr.Address, test.ShouldEqual, byte(0x6A))
		test.That(t, txErr.Register, test.ShouldEqual, byte(0x0F))
		test.That(t, err.Error(), test.ShouldContainSubstring, "device 0x6a register 0x0f")
	})

	t.Run("data phase", func(t *testing.T) {
		bus := &inject.I2C{}
		bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error { return nil }
		bus.ReadFunc = func(ctx context.Context, addr byte, rx []byte, holdBus bool) error { return buses.ErrNoAck }
		tr := buses.NewTransactor(bus)

		_, err := tr.ReadRegister(ctx, 0x6A, 0x27)
		test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeTrue)
		var txErr *buses.TransactionError
		test.That(t, errors.As(err, &txErr), test.ShouldBeTrue)
		test.That(t, txErr.Phase, test.ShouldEqual, buses.PhaseRead)
	})

	t.Run("write", func(t *testing.T) {
		bus := &inject.I2C{}
		bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error { return nack }
		tr := buses.NewTransactor(bus)

		err := tr.WriteRegister(ctx, 0x6A, 0x11, 0x80)
		test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeTrue)
		err = tr.WriteBlock(ctx, 0x6A, []byte{0x10, 0xA0})
		test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeTrue)
	})
}

func TestTimeout(t *testing.T) {
	blockUntilDone := func(ctx context.Context, addr byte, buf []byte, holdBus bool) error {
		<-ctx.Done()
		return ctx.Err()
	}

	t.Run("transaction deadline", func(t *testing.T) {
		bus := &inject.I2C{}
		bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error { return nil }
		bus.ReadFunc = blockUntilDone
		tr := buses.NewTransactor(bus, buses.WithTransactionTimeout(time.Millisecond))

		_, err := tr.ReadRegister(context.Background(), 0x6A, 0x0F)
		test.That(t, errors.Is(err, buses.ErrTimeout), test.ShouldBeTrue)
		test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeFalse)
	})

	t.Run("caller deadline", func(t *testing.T) {
		bus := &inject.I2C{}
		bus.WriteFunc = blockUntilDone
		tr := buses.NewTransactor(bus, buses.WithTransactionTimeout(0))

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		err := tr.WriteRegister(ctx, 0x6A, 0x10, 0xA0)
		test.That(t, errors.Is(err, buses.ErrTimeout), test.ShouldBeTrue)
	})

	t.Run("transport reported", func(t *testing.T) {
		bus := &inject.I2C{}
		bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error {
			return errors.Wrap(buses.ErrTimeout, "clock stretched too long")
		}
		tr := buses.NewTransactor(bus)

		err := tr.WriteBlock(context.Background(), 0x6A, []byte{0x10})
		test.That(t, errors.Is(err, buses.ErrTimeout), test.ShouldBeTrue)
	})
}

func TestSingleTransactionInFlight(t *testing.T) {
	ctx := context.Background()
	bus, ops := recordingBus(0x69, 0x42)
	tr := buses.NewTransactor(bus)

	var nestedErr error
	write := bus.WriteFunc
	bus.WriteFunc = func(ctx context.Context, addr byte, tx []byte, holdBus bool) error {
		if nestedErr == nil {
			_, nestedErr = tr.ReadRegister(ctx, addr, 0x1E)
		}
		return write(ctx, addr, tx, holdBus)
	}

	value, err := tr.ReadRegister(ctx, 0x6A, 0x0F)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, byte(0x69))
	test.That(t, errors.Is(nestedErr, buses.ErrBusy), test.ShouldBeTrue)
	test.That(t, len(*ops), test.ShouldEqual, 2)

	// The bus is released once the outer transaction finishes.
	value, err = tr.ReadRegister(ctx, 0x6A, 0x1E)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, byte(0x42))
}
