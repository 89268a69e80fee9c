// Package scheduler implements a self-rearming periodic scheduler.
// Each tick arms the next timer before it invokes the action, so the cadence
// does not depend on how long the action runs. Actions may therefore overlap
// when one outlasts the interval. A running action is never preempted.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	// ErrInvalidInterval is returned by New for a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrNilAction is returned by New when no action is given.
	ErrNilAction = errors.New("action is required")

	// ErrStopped is returned by Start on a scheduler that has been stopped.
	// Stopped schedulers cannot be restarted.
	ErrStopped = errors.New("scheduler stopped")

	// ErrTimerUnavailable means the clock could not arm a timer. It is fatal:
	// the scheduler stops and reports it through Err.
	ErrTimerUnavailable = errors.New("timer unavailable")
)

// Action is the work performed on every tick. A returned error is logged and
// counted; it does not stop the scheduler.
type Action func() error

// State is the lifecycle state of a Scheduler.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats counts what the scheduler has done so far.
type Stats struct {
	Ticks    uint64 // ticks dispatched to the action
	Failures uint64 // actions that returned an error or panicked
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// Scheduler invokes an action every interval until stopped.
type Scheduler struct {
	interval time.Duration
	action   Action
	clock    clockwork.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	pending clockwork.Timer
	gen     uint64 // identifies the pending timer; stale firings are ignored
	stats   Stats
	err     error
	done    chan struct{}

	inflight sync.WaitGroup
}

// New creates an idle Scheduler. Call Start to begin ticking.
func New(interval time.Duration, action Action, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w (got %s)", ErrInvalidInterval, interval)
	}
	if action == nil {
		return nil, ErrNilAction
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		interval: interval,
		action:   action,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start arms the first timer one interval from now. Calling Start on a
// running scheduler does nothing. A stopped scheduler returns ErrStopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrStopped
	}

	if err := s.armLocked(); err != nil {
		s.terminateLocked(err)
		return err
	}
	s.state = StateRunning
	s.logger.Debug("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the pending timer and moves the scheduler to its terminal
// state. It never blocks on a running action; that action may finish, but no
// timer is armed after Stop returns. Stop is idempotent and does nothing on a
// scheduler that was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	s.terminateLocked(nil)
	s.logger.Debug("Scheduler stopped", zap.Uint64("ticks", s.stats.Ticks))
}

// Wait blocks until every dispatched action has returned or ctx is done.
// It is meant to be called after Stop.
func (s *Scheduler) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the scheduler reaches the stopped state, either through
// Stop or a fatal arming failure.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that stopped the scheduler, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the tick counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// tick runs on the clock's goroutine when the timer of generation gen fires.
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if s.state != StateRunning || gen != s.gen {
		// Lost the race against Stop.
		s.mu.Unlock()
		return
	}
	s.pending = nil
	if err := s.armLocked(); err != nil {
		s.logger.Error("Cannot re-arm timer, stopping scheduler", zap.Error(err))
		s.terminateLocked(err)
		s.mu.Unlock()
		return
	}
	s.stats.Ticks++
	seq := s.stats.Ticks
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	if err := s.invoke(); err != nil {
		s.logger.Warn("Tick failed, continuing",
			zap.Uint64("tick", seq),
			zap.Error(err))
		s.mu.Lock()
		s.stats.Failures++
		s.mu.Unlock()
	}
}

// invoke runs the action, turning a panic into an error.
func (s *Scheduler) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return s.action()
}

// armLocked schedules the next tick. s.mu must be held.
func (s *Scheduler) armLocked() error {
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(s.interval, func() { s.tick(gen) })
	if t == nil {
		return ErrTimerUnavailable
	}
	s.pending = t
	return nil
}

// terminateLocked cancels the pending timer and closes Done. s.mu must be held.
func (s *Scheduler) terminateLocked(err error) {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	// Invalidate any timer that already fired and is waiting on the lock.
	s.gen++
	s.state = StateStopped
	s.err = err
	close(s.done)
}
