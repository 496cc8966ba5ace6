// Package config defines the structures to configure the board, the sensors and the polling loop.
package config

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sonarimu/components/board"
	"go.viam.com/sonarimu/components/board/fake"
	"go.viam.com/sonarimu/components/movementsensor/lsm6ds33"
	"go.viam.com/sonarimu/components/sensor/ultrasonic"
)

// DefaultPollInterval is used when the config does not set poll_interval_ms.
const DefaultPollInterval = time.Second

// Config describes the board and the two sensors attached to it.
type Config struct {
	ConfigFilePath string `json:"-" yaml:"-"`

	Board          board.Config      `json:"board" yaml:"board"`
	MovementSensor lsm6ds33.Config   `json:"movement_sensor" yaml:"movement_sensor"`
	Ultrasonic     ultrasonic.Config `json:"ultrasonic" yaml:"ultrasonic"`
	PollIntervalMs uint              `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty"`
}

// Ensure validates the config section by section, then checks that the sections agree with each
// other.
func (c *Config) Ensure() error {
	if err := c.Board.Validate("board"); err != nil {
		return err
	}
	if err := c.MovementSensor.Validate("movement_sensor"); err != nil {
		return err
	}
	if err := c.Ultrasonic.Validate("ultrasonic"); err != nil {
		return err
	}

	if !c.hasBus(c.MovementSensor.I2CBus) {
		return utils.NewConfigValidationError("movement_sensor",
			errors.Errorf("i2c_bus %q is not configured on the board", c.MovementSensor.I2CBus))
	}
	return nil
}

func (c *Config) hasBus(name string) bool {
	if len(c.Board.I2Cs) == 0 && c.Board.Model == board.ModelFake {
		return name == fake.DefaultI2CName
	}
	for _, bus := range c.Board.I2Cs {
		if bus.Name == name {
			return true
		}
	}
	return false
}

// PollInterval returns the configured time between readings, or DefaultPollInterval.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMs == 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Simulated returns a config for a fake board carrying both sensors, used when no hardware is
// available.
func Simulated() *Config {
	return &Config{
		Board: board.Config{
			Model:              board.ModelFake,
			SimulatedDistanceM: 0.5,
		},
		MovementSensor: lsm6ds33.Config{I2CBus: fake.DefaultI2CName},
		Ultrasonic:     ultrasonic.Config{TriggerPin: "GPIO16", EchoPin: "GPIO17"},
	}
}
