package fake

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/components/board/genericlinux/buses"
	"go.viam.com/sonarimu/logging"
)

func TestFakeBoard(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	b, err := NewBoard(nil, logger)
	test.That(t, err, test.ShouldBeNil)
	_, ok := b.I2CByName(DefaultI2CName)
	test.That(t, ok, test.ShouldBeTrue)

	b, err = NewBoard(&board.Config{
		Model: board.ModelFake,
		I2Cs:  []board.I2CConfig{{Name: "imu", Bus: "1"}, {Name: "aux", Bus: "2"}},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, ok = b.I2CByName("imu")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = b.I2CByName("aux")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = b.I2CByName(DefaultI2CName)
	test.That(t, ok, test.ShouldBeFalse)

	pin, err := b.GPIOPinByName("GPIO16")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pin.Set(ctx, true, nil), test.ShouldBeNil)
	samePin, err := b.GPIOPinByName("GPIO16")
	test.That(t, err, test.ShouldBeNil)
	high, err := samePin.Get(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)
	test.That(t, pin.(*GPIOPin).SetCount(), test.ShouldEqual, 1)

	test.That(t, b.Timer().TicksPerSecond(), test.ShouldEqual, uint64(DefaultTicksPerSecond))

	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, b.CloseCount, test.ShouldEqual, 1)

	_, err = NewBoard(&board.Config{Model: board.ModelGenericLinux}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestI2CRegisters(t *testing.T) {
	ctx := context.Background()
	bus := NewI2C()
	dev := bus.AddDevice(0x6A)
	dev.SetRegister(0x28, 0x34)
	dev.SetRegister(0x29, 0x12)

	// Pointer write with the bus held, then a two byte auto-incrementing read.
	test.That(t, bus.Write(ctx, 0x6A, []byte{0x28}, true), test.ShouldBeNil)
	rx := make([]byte, 2)
	test.That(t, bus.Read(ctx, 0x6A, rx, false), test.ShouldBeNil)
	test.That(t, rx, test.ShouldResemble, []byte{0x34, 0x12})

	// Register writes land at the pointer and auto-increment.
	test.That(t, bus.Write(ctx, 0x6A, []byte{0x10, 0xA0, 0x80}, false), test.ShouldBeNil)
	test.That(t, dev.Register(0x10), test.ShouldEqual, byte(0xA0))
	test.That(t, dev.Register(0x11), test.ShouldEqual, byte(0x80))
	test.That(t, dev.WriteCount(0x10), test.ShouldEqual, 1)
	test.That(t, dev.WriteCount(0x28), test.ShouldEqual, 0)

	expected := []Transaction{
		{Address: 0x6A, Data: []byte{0x28}, HoldBus: true},
		{Read: true, Address: 0x6A, Data: []byte{0x34, 0x12}},
		{Address: 0x6A, Data: []byte{0x10, 0xA0, 0x80}},
	}
	test.That(t, cmp.Diff(expected, bus.Transactions()), test.ShouldBeEmpty)
	bus.ClearTransactions()
	test.That(t, bus.Transactions(), test.ShouldBeEmpty)
}

func TestI2CFailures(t *testing.T) {
	ctx := context.Background()
	bus := NewI2C()

	err := bus.Write(ctx, 0x1C, []byte{0x0F}, true)
	test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeTrue)
	err = bus.Read(ctx, 0x1C, make([]byte, 1), false)
	test.That(t, errors.Is(err, buses.ErrNoAck), test.ShouldBeTrue)

	dev := bus.AddDevice(0x6A)
	dev.SetError(buses.ErrTimeout)
	err = bus.Write(ctx, 0x6A, []byte{0x0F}, true)
	test.That(t, errors.Is(err, buses.ErrTimeout), test.ShouldBeTrue)
	dev.SetError(nil)
	test.That(t, bus.Write(ctx, 0x6A, []byte{0x0F}, true), test.ShouldBeNil)

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	test.That(t, bus.Write(cancelCtx, 0x6A, []byte{0x0F}, true), test.ShouldEqual, context.Canceled)
}

func TestTimer(t *testing.T) {
	timer := NewTimer(1000000, 5)
	test.That(t, timer.Now(), test.ShouldEqual, uint64(0))
	test.That(t, timer.Now(), test.ShouldEqual, uint64(5))
	test.That(t, timer.Last(), test.ShouldEqual, uint64(5))

	timer.Advance(100)
	test.That(t, timer.Now(), test.ShouldEqual, uint64(110))

	timer.Set(1000)
	test.That(t, timer.Last(), test.ShouldEqual, uint64(1000))
	test.That(t, timer.Now(), test.ShouldEqual, uint64(1000))
	test.That(t, timer.Now(), test.ShouldEqual, uint64(1005))
}

func TestRanger(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b, err := NewBoard(nil, logger)
	test.That(t, err, test.ShouldBeNil)

	r := b.AttachRanger("trig", "echo", 0.0995)
	test.That(t, r.RoundTripTicks(), test.ShouldEqual, uint64(580))

	trigger, err := b.GPIOPinByName("trig")
	test.That(t, err, test.ShouldBeNil)
	echo, err := b.GPIOPinByName("echo")
	test.That(t, err, test.ShouldBeNil)

	timer := b.FakeTimer()
	timer.Set(100)
	test.That(t, trigger.Set(ctx, false, nil), test.ShouldBeNil)
	test.That(t, trigger.Set(ctx, true, nil), test.ShouldBeNil)
	test.That(t, trigger.Set(ctx, false, nil), test.ShouldBeNil)
	test.That(t, r.Triggers(), test.ShouldEqual, 1)

	levelAt := func(tick uint64) bool {
		timer.Set(tick)
		high, err := echo.Get(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		return high
	}
	test.That(t, levelAt(100), test.ShouldBeFalse)
	test.That(t, levelAt(101), test.ShouldBeTrue)
	test.That(t, levelAt(680), test.ShouldBeTrue)
	test.That(t, levelAt(681), test.ShouldBeFalse)

	r.SetSilent(true)
	timer.Set(2000)
	test.That(t, trigger.Set(ctx, true, nil), test.ShouldBeNil)
	test.That(t, trigger.Set(ctx, false, nil), test.ShouldBeNil)
	test.That(t, r.Triggers(), test.ShouldEqual, 2)
	test.That(t, levelAt(2001), test.ShouldBeFalse)
}
