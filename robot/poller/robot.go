package poller

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/components/board/fake"
	"go.viam.com/sonarimu/components/board/genericlinux"
	"go.viam.com/sonarimu/components/board/genericlinux/buses"
	"go.viam.com/sonarimu/components/movementsensor/lsm6ds33"
	"go.viam.com/sonarimu/components/sensor/ultrasonic"
	"go.viam.com/sonarimu/config"
	"go.viam.com/sonarimu/logging"
	"go.viam.com/sonarimu/utils"
)

const defaultSimulatedDistance = 0.5

// Raw samples served by a simulated IMU: the chip lying flat and turning slowly.
const (
	simulatedAccelX int16 = 0
	simulatedAccelY int16 = 16393
	simulatedGyroZ  int16 = 232
)

// A Robot is a board with both sensors built on it and a poller driving them.
type Robot struct {
	Board  board.Board
	IMU    *lsm6ds33.Sensor
	Range  *ultrasonic.Sensor
	Poller *Poller
}

// Build constructs the board and sensors described by conf. The inertial sensor is not brought up;
// call Poller.BringUp before polling.
func Build(ctx context.Context, conf *config.Config, clk clock.Clock, logger logging.Logger) (*Robot, error) {
	b, err := newBoard(conf, logger.Sublogger("board"))
	if err != nil {
		return nil, err
	}

	var busOpts []buses.TransactorOption
	if timeout := conf.Board.TransactionTimeout(); timeout > 0 {
		busOpts = append(busOpts, buses.WithTransactionTimeout(timeout))
	}
	imu, err := lsm6ds33.New(b, &conf.MovementSensor, logger.Sublogger("lsm6ds33"), busOpts...)
	if err != nil {
		return nil, multierr.Combine(err, b.Close(ctx))
	}
	rng, err := ultrasonic.New(ctx, b, &conf.Ultrasonic, logger.Sublogger("ultrasonic"))
	if err != nil {
		return nil, multierr.Combine(err, b.Close(ctx))
	}

	return &Robot{
		Board:  b,
		IMU:    imu,
		Range:  rng,
		Poller: New(imu, rng, clk, conf.PollInterval(), logger),
	}, nil
}

// Close stops polling and releases the board.
func (r *Robot) Close(ctx context.Context) error {
	r.Poller.Close()
	return r.Board.Close(ctx)
}

func newBoard(conf *config.Config, logger logging.Logger) (board.Board, error) {
	switch conf.Board.Model {
	case board.ModelGenericLinux:
		return genericlinux.NewBoard(&conf.Board, logger)
	case board.ModelFake:
		return newSimulatedBoard(conf, logger)
	default:
		return nil, errors.Errorf("unknown board model %q", conf.Board.Model)
	}
}

// newSimulatedBoard returns a fake board with an LSM6DS33 on the configured bus and an echo
// simulator on the configured pins.
func newSimulatedBoard(conf *config.Config, logger logging.Logger) (*fake.Board, error) {
	b, err := fake.NewBoard(&conf.Board, logger)
	if err != nil {
		return nil, err
	}
	bus, ok := b.I2Cs[conf.MovementSensor.I2CBus]
	if !ok {
		return nil, errors.Errorf("fake board has no i2c bus %q", conf.MovementSensor.I2CBus)
	}
	dev := bus.AddDevice(conf.MovementSensor.Address())
	dev.SetRegister(lsm6ds33.RegWhoAmI, lsm6ds33.ExpectedIdentity)
	dev.SetRegister(lsm6ds33.RegStatus, lsm6ds33.StatusAccelReady|lsm6ds33.StatusGyroReady)
	setSample(dev, lsm6ds33.RegOutXHXL, lsm6ds33.RegOutXLXL, simulatedAccelX)
	setSample(dev, lsm6ds33.RegOutYHXL, lsm6ds33.RegOutYLXL, simulatedAccelY)
	setSample(dev, lsm6ds33.RegOutZHG, lsm6ds33.RegOutZLG, simulatedGyroZ)

	distance := conf.Board.SimulatedDistanceM
	if distance == 0 {
		distance = defaultSimulatedDistance
	}
	b.AttachRanger(conf.Ultrasonic.TriggerPin, conf.Ultrasonic.EchoPin, distance)
	return b, nil
}

func setSample(dev *fake.I2CDevice, high, low byte, raw int16) {
	h, l := utils.BytesFromInt16BE(raw)
	dev.SetRegister(high, h)
	dev.SetRegister(low, l)
}
