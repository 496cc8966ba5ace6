// Package main brings up the LSM6DS33 and HC-SR04 on a board and logs their readings until
// interrupted.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/sonarimu/config"
	"go.viam.com/sonarimu/logging"
	"go.viam.com/sonarimu/robot/poller"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagFake     = "fake"
	flagCount    = "count"
	flagInterval = "interval"
	flagAttempts = "attempts"
	flagLogFile  = "log-file"
	flagLogLevel = "log-level"

	logFileMaxSizeMB = 16
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

var newLogger = func(level logging.Level, logFile string) (logging.Logger, io.Closer) {
	if logFile != "" {
		return logging.NewRotatingFileLogger("sonarimu", level, logFile, logFileMaxSizeMB)
	}
	logger := logging.NewLogger("sonarimu")
	logger.SetLevel(level)
	return logger, nopCloser{}
}

// logLevel resolves the level from --log-level; --debug wins over it.
func logLevel(c *cli.Context) (logging.Level, error) {
	if c.Bool(flagDebug) {
		return logging.DEBUG, nil
	}
	return logging.LevelFromString(c.String(flagLogLevel))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(clock.New()).RunContext(ctx, os.Args); err != nil {
		logging.Global().Error(err)
		stop()
		os.Exit(1)
	}
}

func newApp(clk clock.Clock) *cli.App {
	return &cli.App{
		Name:  "sonarimu",
		Usage: "poll an LSM6DS33 inertial sensor and an HC-SR04 range finder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagFake,
				Usage: "run against a simulated board instead of a config file",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "minimum log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to `FILE`, rotated as it grows",
			},
			&cli.IntFlag{
				Name:  flagCount,
				Usage: "stop after `N` readings; 0 polls until interrupted",
			},
			&cli.DurationFlag{
				Name:  flagInterval,
				Usage: "override the configured poll interval",
			},
			&cli.IntFlag{
				Name:  flagAttempts,
				Value: poller.DefaultBringUpAttempts,
				Usage: "inertial sensor bring-up attempts",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c, clk)
		},
	}
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	switch {
	case c.Bool(flagFake) && c.String(flagConfig) != "":
		return nil, errors.Errorf("--%s and --%s are mutually exclusive", flagFake, flagConfig)
	case c.Bool(flagFake):
		return config.Simulated(), nil
	case c.String(flagConfig) != "":
		return config.Read(c.String(flagConfig), logger)
	default:
		return nil, errors.Errorf("one of --%s or --%s is required", flagConfig, flagFake)
	}
}

func run(c *cli.Context, clk clock.Clock) (err error) {
	ctx := c.Context
	level, err := logLevel(c)
	if err != nil {
		return err
	}
	logger, logCloser := newLogger(level, c.String(flagLogFile))
	logging.ReplaceGlobal(logger)
	defer func() {
		utils.UncheckedError(logger.Sync())
		err = multierr.Combine(err, logCloser.Close())
	}()

	if c.Int(flagCount) < 0 {
		return errors.Errorf("--%s must not be negative", flagCount)
	}
	conf, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	if interval := c.Duration(flagInterval); interval > 0 {
		conf.PollIntervalMs = uint(interval.Milliseconds())
	}
	logger.Infow("starting",
		"board", conf.Board.Model,
		"poll_interval", conf.PollInterval(),
		"log_level", logger.GetLevel(),
	)

	r, err := poller.Build(ctx, conf, clk, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, r.Close(ctx))
	}()

	if err := r.Poller.BringUp(ctx, c.Int(flagAttempts)); err != nil {
		return err
	}
	logger.Infow("inertial sensor enabled", "state", r.IMU.State())

	done := make(chan struct{})
	var (
		doneOnce sync.Once
		mu       sync.Mutex
		seen     int
	)
	limit := c.Int(flagCount)
	if err := r.Poller.Start(func(reading poller.Reading) {
		logReading(logger, reading)
		if limit == 0 {
			return
		}
		mu.Lock()
		seen++
		reached := seen >= limit
		mu.Unlock()
		if reached {
			doneOnce.Do(func() { close(done) })
		}
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-done:
	}
	return nil
}

func logReading(logger logging.Logger, r poller.Reading) {
	if r.IMUErr == nil {
		logger.Infow("inertial",
			"status", r.Status,
			"accel_ready", r.AccelReady,
			"gyro_ready", r.GyroReady,
			"accel_x_mps2", r.Acceleration.X,
			"accel_y_mps2", r.Acceleration.Y,
			"gyro_z_rps", r.AngularRateZ,
		)
	}
	if r.RangeErr == nil {
		logger.Infow("range", "distance_m", r.Distance)
	}
}
