// Package poller runs the read loop: bring the inertial sensor up once, then on every tick read
// its status, gyroscope and accelerometer followed by one range measurement.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/sonarimu/components/movementsensor/lsm6ds33"
	"go.viam.com/sonarimu/logging"
)

// Bring-up retry policy.
const (
	DefaultBringUpAttempts = 3
	BringUpRetryWait       = 100 * time.Millisecond
)

// IMU is the part of the inertial driver the poller uses.
type IMU interface {
	Identify(ctx context.Context) error
	Enable(ctx context.Context) error
	Status(ctx context.Context) (byte, error)
	AngularRateZ(ctx context.Context) (float64, error)
	AccelerationXY(ctx context.Context) (x, y float64, err error)
}

// Ranger is the part of the range driver the poller uses.
type Ranger interface {
	Measure(ctx context.Context) (float64, error)
}

// A Reading is the outcome of one poll. The inertial and range halves fail independently.
type Reading struct {
	At           time.Time
	Status       byte
	AccelReady   bool
	GyroReady    bool
	Acceleration r3.Vector
	AngularRateZ float64
	Distance     float64

	IMUErr   error
	RangeErr error
}

// Err combines both halves' errors.
func (r Reading) Err() error {
	return multierr.Combine(r.IMUErr, r.RangeErr)
}

// A Poller owns the sensors for the lifetime of the loop.
type Poller struct {
	imu      IMU
	ranger   Ranger
	clock    clock.Clock
	interval time.Duration
	logger   logging.Logger

	mu                      sync.Mutex
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// New returns a poller reading every interval on clk.
func New(imu IMU, ranger Ranger, clk clock.Clock, interval time.Duration, logger logging.Logger) *Poller {
	return &Poller{imu: imu, ranger: ranger, clock: clk, interval: interval, logger: logger}
}

// terminalError reports whether retrying bring-up cannot help. A transaction that hit its own
// deadline is an ordinary bus timeout and is retried; only the caller's context ends bring-up.
func terminalError(ctx context.Context, err error) bool {
	return errors.Is(err, lsm6ds33.ErrIdentityMismatch) || ctx.Err() != nil
}

// BringUp identifies and enables the inertial sensor. Bus failures are retried up to attempts
// times, BringUpRetryWait apart; an identity mismatch is not.
func (p *Poller) BringUp(ctx context.Context, attempts int) error {
	bringUp := func() error {
		if err := p.imu.Identify(ctx); err != nil {
			return err
		}
		return p.imu.Enable(ctx)
	}

	err := bringUp()
	if attempts <= 1 || err == nil || terminalError(ctx, err) {
		return err
	}

	ticker := p.clock.Ticker(BringUpRetryWait)
	defer ticker.Stop()
	for attempt := 2; attempt <= attempts; attempt++ {
		p.logger.Debugf("bring-up attempt %d failed, retrying in %s: %s", attempt-1, BringUpRetryWait, err)
		select {
		case <-ctx.Done():
			return multierr.Combine(err, ctx.Err())
		case <-ticker.C:
		}
		err = bringUp()
		if err == nil || terminalError(ctx, err) {
			return err
		}
	}
	return errors.Wrapf(err, "inertial sensor bring-up failed after %d attempts", attempts)
}

// PollOnce takes one reading from each sensor.
func (p *Poller) PollOnce(ctx context.Context) Reading {
	r := Reading{At: p.clock.Now()}
	r.Status, r.AngularRateZ, r.Acceleration, r.IMUErr = p.readIMU(ctx)
	r.AccelReady = lsm6ds33.AccelReady(r.Status)
	r.GyroReady = lsm6ds33.GyroReady(r.Status)
	r.Distance, r.RangeErr = p.ranger.Measure(ctx)
	return r
}

func (p *Poller) readIMU(ctx context.Context) (byte, float64, r3.Vector, error) {
	status, err := p.imu.Status(ctx)
	if err != nil {
		return 0, 0, r3.Vector{}, err
	}
	rate, err := p.imu.AngularRateZ(ctx)
	if err != nil {
		return status, 0, r3.Vector{}, err
	}
	x, y, err := p.imu.AccelerationXY(ctx)
	if err != nil {
		return status, rate, r3.Vector{}, err
	}
	return status, rate, r3.Vector{X: x, Y: y}, nil
}

// Start polls in the background every interval, handing each reading to onReading. Failures are
// logged and delivered; they do not stop the loop.
func (p *Poller) Start(onReading func(Reading)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelFunc != nil {
		return errors.New("poller already started")
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	p.cancelFunc = cancelFunc
	ticker := p.clock.Ticker(p.interval)

	p.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer p.activeBackgroundWorkers.Done()
		defer ticker.Stop()

		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			r := p.PollOnce(cancelCtx)
			if r.IMUErr != nil {
				p.logger.Warnw("error reading inertial sensor", "error", r.IMUErr)
			}
			if r.RangeErr != nil {
				p.logger.Warnw("error measuring range", "error", r.RangeErr)
			}
			onReading(r)
		}
	})
	return nil
}

// Close stops the background loop and waits for it to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	cancelFunc := p.cancelFunc
	p.mu.Unlock()
	if cancelFunc == nil {
		return
	}
	cancelFunc()
	p.activeBackgroundWorkers.Wait()
}
