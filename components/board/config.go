package board

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Board models understood by the command line entry point.
const (
	ModelGenericLinux = "genericlinux"
	ModelFake         = "fake"
)

// I2CConfig enumerates a specific, shareable I2C bus.
type I2CConfig struct {
	Name string `json:"name" yaml:"name"`
	Bus  string `json:"bus" yaml:"bus"`
}

// Validate ensures all parts of the config are valid.
func (config *I2CConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Bus == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "bus")
	}
	return nil
}

// Config describes a board and the buses configured on it.
type Config struct {
	Model                string      `json:"model" yaml:"model"`
	I2Cs                 []I2CConfig `json:"i2cs,omitempty" yaml:"i2cs,omitempty"`
	TransactionTimeoutMs uint        `json:"transaction_timeout_ms,omitempty" yaml:"transaction_timeout_ms,omitempty"`
	// SimulatedDistanceM is the obstacle distance the fake board's echo simulator reports.
	SimulatedDistanceM float64 `json:"simulated_distance_m,omitempty" yaml:"simulated_distance_m,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	switch config.Model {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	case ModelGenericLinux, ModelFake:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown board model %q", config.Model))
	}
	seen := map[string]struct{}{}
	for idx, conf := range config.I2Cs {
		if err := conf.Validate(fmt.Sprintf("%s.%s.%d", path, "i2cs", idx)); err != nil {
			return err
		}
		if _, ok := seen[conf.Name]; ok {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate i2c bus name %q", conf.Name))
		}
		seen[conf.Name] = struct{}{}
	}
	if config.SimulatedDistanceM < 0 {
		return utils.NewConfigValidationError(path, errors.New("simulated_distance_m must not be negative"))
	}
	return nil
}

// TransactionTimeout returns the configured per-transaction bus timeout, or zero for the default.
func (config *Config) TransactionTimeout() time.Duration {
	return time.Duration(config.TransactionTimeoutMs) * time.Millisecond
}
