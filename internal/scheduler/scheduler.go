// Package scheduler invokes the escalation processor on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/lumenhr/be-hr-workflows/internal/escalation"
	"github.com/lumenhr/be-hr-workflows/internal/logger"
)

// Runner executes one escalation pass.
type Runner interface {
	Run(ctx context.Context) (*escalation.Summary, error)
}

// Scheduler fires the runner every interval, bounding each pass with a
// timeout. Passes are single-flight within the process: a tick that
// arrives while a pass is still running is dropped.
type Scheduler struct {
	runner      Runner
	interval    time.Duration
	passTimeout time.Duration
	log         *logger.Logger

	running sync.Mutex
}

// New creates a Scheduler.
func New(runner Runner, interval, passTimeout time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		runner:      runner,
		interval:    interval,
		passTimeout: passTimeout,
		log:         log,
	}
}

// Start runs the tick loop until ctx is canceled. One pass fires
// immediately on start. Blocks; call from its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info().
		Dur("interval", s.interval).
		Dur("pass_timeout", s.passTimeout).
		Msg("Escalation scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Escalation scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// TriggerNow runs one pass outside the tick cadence (operator action).
// Returns nil, false when a pass is already in flight.
func (s *Scheduler) TriggerNow(ctx context.Context) (*escalation.Summary, bool) {
	if !s.running.TryLock() {
		return nil, false
	}
	defer s.running.Unlock()
	return s.run(ctx), true
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.TryLock() {
		s.log.Warn().Msg("Escalation pass still in flight; skipping tick")
		return
	}
	defer s.running.Unlock()
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) *escalation.Summary {
	passCtx := ctx
	if s.passTimeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, s.passTimeout)
		defer cancel()
	}

	summary, err := s.runner.Run(passCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("Escalation pass failed")
		return nil
	}
	return summary
}
