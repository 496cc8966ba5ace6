package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli/v2"
	"go.viam.com/test"

	"go.viam.com/sonarimu/logging"
)

func runWithArgs(t *testing.T, args ...string) (int, int, error) {
	t.Helper()
	logger, observed := logging.NewObservedTestLogger(t)
	prevNewLogger := newLogger
	newLogger = func(logging.Level, string) (logging.Logger, io.Closer) { return logger, nopCloser{} }
	prevGlobal := logging.Global()
	defer func() {
		newLogger = prevNewLogger
		logging.ReplaceGlobal(prevGlobal)
	}()

	err := newApp(clock.New()).RunContext(context.Background(), append([]string{"sonarimu"}, args...))
	return len(observed.FilterMessage("inertial").All()), len(observed.FilterMessage("range").All()), err
}

func TestMainArgs(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		err  string
	}{
		{"no source", nil, "one of --config or --fake"},
		{"both sources", []string{"--fake", "--config", "x.yaml"}, "mutually exclusive"},
		{"negative count", []string{"--fake", "--count=-1"}, "must not be negative"},
		{"missing file", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, "no such file"},
		{"unknown flag", []string{"--unknown"}, "not defined"},
		{"bad log level", []string{"--fake", "--log-level", "loud"}, "unknown log level"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runWithArgs(t, tc.args...)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestMainSimulated(t *testing.T) {
	inertial, ranges, err := runWithArgs(t, "--fake", "--count", "3", "--interval", "5ms")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inertial, test.ShouldBeGreaterThanOrEqualTo, 3)
	test.That(t, ranges, test.ShouldBeGreaterThanOrEqualTo, 3)
}

func TestMainIntervalOverride(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	prevNewLogger := newLogger
	newLogger = func(logging.Level, string) (logging.Logger, io.Closer) { return logger, nopCloser{} }
	prevGlobal := logging.Global()
	defer func() {
		newLogger = prevNewLogger
		logging.ReplaceGlobal(prevGlobal)
	}()

	args := []string{"sonarimu", "--fake", "--count", "1", "--interval", "20ms"}
	test.That(t, newApp(clock.New()).RunContext(context.Background(), args), test.ShouldBeNil)

	starting := observed.FilterMessage("starting").All()
	test.That(t, len(starting), test.ShouldEqual, 1)
	test.That(t, starting[0].ContextMap()["poll_interval"], test.ShouldEqual, 20*time.Millisecond)

	inertial := observed.FilterMessage("inertial").All()
	test.That(t, len(inertial), test.ShouldBeGreaterThanOrEqualTo, 1)
	test.That(t, inertial[0].ContextMap()["accel_ready"], test.ShouldBeTrue)
	test.That(t, inertial[0].ContextMap()["gyro_ready"], test.ShouldBeTrue)
}

func TestLogLevel(t *testing.T) {
	for _, tc := range []struct {
		args  []string
		level logging.Level
	}{
		{nil, logging.INFO},
		{[]string{"--log-level", "warn"}, logging.WARN},
		{[]string{"--log-level", "ERROR"}, logging.ERROR},
		{[]string{"--log-level", "error", "--debug"}, logging.DEBUG},
	} {
		var got logging.Level
		app := newApp(clock.New())
		app.Action = func(c *cli.Context) error {
			level, err := logLevel(c)
			got = level
			return err
		}
		test.That(t, app.Run(append([]string{"sonarimu"}, tc.args...)), test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, tc.level)

		logger, closer := newLogger(got, "")
		test.That(t, logger.GetLevel(), test.ShouldEqual, tc.level)
		test.That(t, closer.Close(), test.ShouldBeNil)
	}
}

func TestMainSimulatedConfigFile(t *testing.T) {
	inertial, _, err := runWithArgs(t,
		"--config", filepath.Join("..", "..", "etc", "configs", "fake.yaml"),
		"--count", "1", "--interval", "5ms", "--attempts", "1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inertial, test.ShouldBeGreaterThanOrEqualTo, 1)
}

func TestMainLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sonarimu.log")
	logger, closer := newLogger(logging.INFO, logFile)
	logger.Infow("range", "distance_m", 0.5)
	test.That(t, closer.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, `"distance_m":0.5`)
}
