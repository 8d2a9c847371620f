package supervisor

import (
	"context"
	stderrors "errors"
	"os"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"
)

// ErrForcedExit is returned by Scheduler.Run when a second interrupt cut a terminate short
var ErrForcedExit = stderrors.New("forced exit on second interrupt")

// Mode is the scheduler state
type Mode int

const (
	ModePolling Mode = iota
	ModeConsole
)

func (m Mode) String() string {
	if m == ModeConsole {
		return "console"
	}
	return "polling"
}

type request struct {
	fn   func(ctx context.Context, sup *Supervisor)
	done chan struct{}
}

// Scheduler is the single task that owns the Supervisor. Check-ins, console sessions and
// control requests all run on it and never overlap.
type Scheduler struct {
	sup        *Supervisor
	console    *Console
	interval   time.Duration
	interrupts <-chan os.Signal
	requests   chan request
	stopped    chan struct{}
	mode       Mode
	logger     logging.Logger
}

func NewScheduler(sup *Supervisor, console *Console, interval time.Duration, interrupts <-chan os.Signal, logger logging.Logger) *Scheduler {
	return &Scheduler{
		sup:        sup,
		console:    console,
		interval:   interval,
		interrupts: interrupts,
		requests:   make(chan request),
		stopped:    make(chan struct{}),
		mode:       ModePolling,
		logger:     logger,
	}
}

// Run checks in immediately and then every interval until the supervisor shuts down.
// An interrupt discards the pending check-in and opens a console session; a fresh check-in
// runs as soon as the session resumes polling. Cancelling ctx stops every server gracefully
// and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)

	timer := time.NewTimer(0)
	defer timer.Stop()

	s.logger.Infof("Scheduler started, check-in interval: %v", s.interval)

	for s.sup.Running() {
		select {
		case <-ctx.Done():
			s.logger.Infof("Context cancelled, stopping all servers")
			if err := s.sup.StopAll(context.WithoutCancel(ctx)); err != nil {
				s.logger.Errorf("Errors while stopping servers: %v", err)
			}
			s.sup.Shutdown()
			return nil

		case <-timer.C:
			s.sup.CheckIn(ctx)
			timer.Reset(s.interval)

		case <-s.interrupts:
			timer.Stop()
			s.mode = ModeConsole
			outcome := s.console.Run(ctx, s.sup, s.interrupts)
			s.mode = ModePolling
			s.logger.Debugf("Console session ended: %s", outcome)

			switch outcome {
			case OutcomeForcedExit:
				return ErrForcedExit
			case OutcomeTerminated:
				return nil
			}
			timer.Reset(0)

		case req := <-s.requests:
			req.fn(ctx, s.sup)
			close(req.done)
		}
	}

	s.logger.Infof("Scheduler stopped")
	return nil
}

// Mode is only meaningful from inside the scheduler task
func (s *Scheduler) Mode() Mode {
	return s.mode
}

// Do runs fn on the scheduler task between check-ins and waits for it
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context, sup *Supervisor)) error {
	req := request{fn: fn, done: make(chan struct{})}

	select {
	case s.requests <- req:
	case <-s.stopped:
		return errors.NewCancelledError("scheduler is not running", nil)
	case <-ctx.Done():
		return errors.NewCancelledError("request cancelled", ctx.Err())
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return errors.NewCancelledError("request cancelled", ctx.Err())
	}
}
