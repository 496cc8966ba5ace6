// Package lsm6ds33 implements a driver for the ST LSM6DS33 6-axis accelerometer and gyroscope. A
// datasheet for this chip is at https://www.pololu.com/file/0J1087/LSM6DS33.pdf
//
// We support reading the X and Y accelerometer axes, the Z gyroscope axis and the status register.
// The chip is checked and configured explicitly: Identify reads WHO_AM_I, then Enable turns on
// both sensors. Reads are not gated on the status register's data-ready bits; the status byte is
// available to callers that want to do that themselves.
//
// The chip has two possible I2C addresses, selected by the SA0 pin:
//   - if SA0 is wired to ground, it uses the address 0x6A
//   - if SA0 is wired to hot, it uses the address 0x6B
package lsm6ds33

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/components/board/genericlinux/buses"
	"go.viam.com/sonarimu/logging"
)

var (
	// ErrIdentityMismatch is matched by the error Identify returns when WHO_AM_I is wrong.
	ErrIdentityMismatch = errors.New("unexpected device identity")
	// ErrNotIdentified is returned by Enable before a successful Identify.
	ErrNotIdentified = errors.New("lsm6ds33 has not been identified")
	// ErrNotEnabled is returned by data reads before a successful Enable.
	ErrNotEnabled = errors.New("lsm6ds33 has not been enabled")
)

// IdentityError reports the WHO_AM_I value of a device that is not an LSM6DS33.
type IdentityError struct {
	Got byte
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%v: WHO_AM_I is 0x%02x, expected 0x%02x", ErrIdentityMismatch, e.Got, ExpectedIdentity)
}

// Is makes errors.Is(err, ErrIdentityMismatch) hold.
func (e *IdentityError) Is(target error) bool {
	return target == ErrIdentityMismatch
}

// State is where a Sensor is in its bring-up sequence. States only move forward.
type State int

// Bring-up states.
const (
	StateUninitialized State = iota
	StateVerified
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateVerified:
		return "verified"
	case StateEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config is used to configure the chip.
type Config struct {
	I2CBus     string `json:"i2c_bus" yaml:"i2c_bus"`
	I2CAddress int    `json:"i2c_address,omitempty" yaml:"i2c_address,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.I2CBus == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "i2c_bus")
	}
	if cfg.I2CAddress != 0 && (cfg.I2CAddress < 0x08 || cfg.I2CAddress > 0x77) {
		return utils.NewConfigValidationError(path, errors.Errorf("i2c_address 0x%x is outside the 7-bit range", cfg.I2CAddress))
	}
	return nil
}

// Address returns the configured bus address, or DefaultAddress.
func (cfg *Config) Address() byte {
	if cfg.I2CAddress == 0 {
		return DefaultAddress
	}
	return byte(cfg.I2CAddress)
}

// A Sensor talks to one LSM6DS33 through a Transactor. It holds no sample data; every read goes
// to the chip.
type Sensor struct {
	tr      *buses.Transactor
	address byte
	whoAmI  *buses.I2CRegister
	status  *buses.I2CRegister
	ctrl1XL *buses.I2CRegister
	ctrl2G  *buses.I2CRegister
	logger  logging.Logger

	mu    sync.Mutex
	state State
}

// NewSensor returns an uninitialized driver for the chip at address.
func NewSensor(tr *buses.Transactor, address byte, logger logging.Logger) *Sensor {
	return &Sensor{
		tr:      tr,
		address: address,
		whoAmI:  &buses.I2CRegister{Transactor: tr, Address: address, Register: RegWhoAmI},
		status:  &buses.I2CRegister{Transactor: tr, Address: address, Register: RegStatus},
		ctrl1XL: &buses.I2CRegister{Transactor: tr, Address: address, Register: RegCtrl1XL},
		ctrl2G:  &buses.I2CRegister{Transactor: tr, Address: address, Register: RegCtrl2G},
		logger:  logger,
	}
}

// New looks up the configured bus on the board and returns an uninitialized driver for it.
func New(b board.Board, cfg *Config, logger logging.Logger, opts ...buses.TransactorOption) (*Sensor, error) {
	bus, ok := b.I2CByName(cfg.I2CBus)
	if !ok {
		return nil, errors.Errorf("can't find I2C bus '%s' for LSM6DS33 sensor", cfg.I2CBus)
	}
	busLogger := logger.Sublogger("bus")
	tr := buses.NewTransactor(bus, append([]buses.TransactorOption{buses.WithLogger(busLogger)}, opts...)...)
	logger.Debugf("Using address 0x%02x for LSM6DS33 sensor", cfg.Address())
	return NewSensor(tr, cfg.Address(), logger), nil
}

// State returns the sensor's current bring-up state.
func (s *Sensor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sensor) advance(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to > s.state {
		s.state = to
	}
}

// Identify reads WHO_AM_I and moves an uninitialized sensor to StateVerified if the chip answers
// with ExpectedIdentity. Bus errors are returned as they are.
func (s *Sensor) Identify(ctx context.Context) error {
	id, err := s.whoAmI.ReadByteData(ctx)
	if err != nil {
		return err
	}
	if id != ExpectedIdentity {
		return &IdentityError{Got: id}
	}
	s.advance(StateVerified)
	s.logger.Infof("found LSM6DS33 at address 0x%02x", s.address)
	return nil
}

// Enable turns on the accelerometer and the gyroscope. The state only moves to StateEnabled once
// both control registers are written.
func (s *Sensor) Enable(ctx context.Context) error {
	if s.State() < StateVerified {
		return ErrNotIdentified
	}
	if err := s.ctrl1XL.WriteByteData(ctx, Ctrl1XLValue); err != nil {
		return err
	}
	if err := s.ctrl2G.WriteByteData(ctx, Ctrl2GValue); err != nil {
		return err
	}
	s.advance(StateEnabled)
	s.logger.Debug("LSM6DS33 accelerometer and gyroscope enabled")
	return nil
}

// Status reads the status register. It does not require the sensor to be enabled.
func (s *Sensor) Status(ctx context.Context) (byte, error) {
	return s.status.ReadByteData(ctx)
}

func (s *Sensor) readSample(ctx context.Context, high, low byte) (int16, error) {
	h, err := s.tr.ReadRegister(ctx, s.address, high)
	if err != nil {
		return 0, err
	}
	l, err := s.tr.ReadRegister(ctx, s.address, low)
	if err != nil {
		return 0, err
	}
	return RawSample(h, l), nil
}

// AngularRateZ returns the Z axis angular rate in radians per second.
func (s *Sensor) AngularRateZ(ctx context.Context) (float64, error) {
	if s.State() < StateEnabled {
		return 0, ErrNotEnabled
	}
	raw, err := s.readSample(ctx, RegOutZHG, RegOutZLG)
	if err != nil {
		return 0, err
	}
	return AngularRate(raw), nil
}

// AccelerationXY returns the X and Y axis linear acceleration in meters per second squared.
func (s *Sensor) AccelerationXY(ctx context.Context) (x, y float64, err error) {
	if s.State() < StateEnabled {
		return 0, 0, ErrNotEnabled
	}
	rawX, err := s.readSample(ctx, RegOutXHXL, RegOutXLXL)
	if err != nil {
		return 0, 0, err
	}
	rawY, err := s.readSample(ctx, RegOutYHXL, RegOutYLXL)
	if err != nil {
		return 0, 0, err
	}
	return LinearAcceleration(rawX), LinearAcceleration(rawY), nil
}

// Readings returns the status byte, X/Y linear acceleration and Z angular rate in one map.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := s.AngularRateZ(ctx)
	if err != nil {
		return nil, err
	}
	x, y, err := s.AccelerationXY(ctx)
	if err != nil {
		return nil, err
	}

	readings := make(map[string]interface{})
	readings["status"] = status
	readings["linear_acceleration"] = r3.Vector{X: x, Y: y}
	readings["angular_velocity_z"] = rate
	return readings, nil
}
