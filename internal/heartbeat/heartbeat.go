// Package heartbeat runs a collector on a fixed beat for a bounded lifetime.
// It owns the scheduler: start, wait for the lifetime, stop, drain.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/FNNDSC/pl-heartbeat/internal/collector"
	"github.com/FNNDSC/pl-heartbeat/internal/scheduler"
)

// drainTimeout bounds how long Run waits for a straggler tick after stopping.
const drainTimeout = 5 * time.Second

// ErrInvalidOptions is returned by Run for options that cannot start a heartbeat.
var ErrInvalidOptions = errors.New("invalid heartbeat options")

// Options configures a single heartbeat run.
type Options struct {
	Interval  time.Duration
	Lifetime  time.Duration
	Collector collector.Collector
	Out       io.Writer
	Logger    *zap.Logger
	Clock     clockwork.Clock
}

// Summary describes a completed run.
type Summary struct {
	Ticks       uint64
	Failures    uint64
	Interrupted bool
}

// Run samples opts.Collector every opts.Interval and writes one line per tick
// to opts.Out until opts.Lifetime elapses or ctx is cancelled. Sample errors
// are logged and skipped. A scheduling failure ends the run with an error.
//
// When the lifetime is shorter than the interval no tick could ever fire in
// time, so the scheduler is not started and Run just waits out the lifetime.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if err := opts.validate(); err != nil {
		return Summary{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	out := NewLineWriter(opts.Out)

	lifetime := clock.NewTimer(opts.Lifetime)
	defer lifetime.Stop()

	if opts.Lifetime < opts.Interval {
		logger.Warn("Lifetime is shorter than the beat interval, no beats will be emitted",
			zap.Duration("interval", opts.Interval),
			zap.Duration("lifetime", opts.Lifetime))
		select {
		case <-lifetime.Chan():
			return Summary{}, nil
		case <-ctx.Done():
			return Summary{Interrupted: true}, nil
		}
	}

	sample := func() error {
		line, err := opts.Collector.Sample(ctx)
		if err != nil {
			return err
		}
		return out.WriteLine(line)
	}
	sched, err := scheduler.New(opts.Interval, sample, logger.Named("scheduler"), scheduler.WithClock(clock))
	if err != nil {
		return Summary{}, fmt.Errorf("creating scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return Summary{}, fmt.Errorf("starting scheduler: %w", err)
	}

	logger.Info("Heartbeat running",
		zap.String("collector", opts.Collector.Name()),
		zap.Duration("interval", opts.Interval),
		zap.Duration("lifetime", opts.Lifetime))

	var summary Summary
	select {
	case <-lifetime.Chan():
		logger.Debug("Lifetime elapsed")
	case <-ctx.Done():
		logger.Info("Heartbeat interrupted", zap.Error(ctx.Err()))
		summary.Interrupted = true
	case <-sched.Done():
	}
	sched.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := sched.Wait(drainCtx); err != nil {
		logger.Warn("Straggler tick still running at exit", zap.Error(err))
	}

	stats := sched.Stats()
	summary.Ticks = stats.Ticks
	summary.Failures = stats.Failures
	if err := sched.Err(); err != nil {
		return summary, fmt.Errorf("heartbeat aborted: %w", err)
	}
	return summary, nil
}

func (o Options) validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive (got %s)", ErrInvalidOptions, o.Interval)
	}
	if o.Lifetime <= 0 {
		return fmt.Errorf("%w: lifetime must be positive (got %s)", ErrInvalidOptions, o.Lifetime)
	}
	if o.Collector == nil {
		return fmt.Errorf("%w: collector is required", ErrInvalidOptions)
	}
	if o.Out == nil {
		return fmt.Errorf("%w: output writer is required", ErrInvalidOptions)
	}
	return nil
}
