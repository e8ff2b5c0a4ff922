// Package scheduler wires the external time-based triggers onto the refresh
// runner.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/quotedeck/logocache/internal/config"
	"github.com/quotedeck/logocache/internal/logger"
	"github.com/quotedeck/logocache/internal/refresh"
)

// Scheduler runs the daily cycle-arm trigger and the per-minute tick
// trigger. The runner re-reads all pacing state from the store on every
// tick, so overlapping or missed triggers are safe.
type Scheduler struct {
	cfg    *config.Config
	runner *refresh.Runner
	cron   *cron.Cron
}

// New creates a Scheduler.
func New(cfg *config.Config, runner *refresh.Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
	}
}

// Start registers the triggers and runs until the context is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule.Daily, func() {
		if err := s.runner.StartCycle(ctx); err != nil {
			logger.Error(ctx, "Failed to arm cycle", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid daily schedule %q: %w", s.cfg.Schedule.Daily, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule.Minute, func() {
		outcome, err := s.runner.Tick(ctx)
		if err != nil {
			// Store failures abort the tick without an audit record; the next
			// trigger retries cleanly.
			logger.Error(ctx, "Tick aborted", "err", err)
			return
		}
		logger.Debug(ctx, "Tick finished",
			"status", string(outcome.Status),
			"ticker", outcome.Ticker,
			"detail", outcome.Detail)
	}); err != nil {
		return fmt.Errorf("invalid minute schedule %q: %w", s.cfg.Schedule.Minute, err)
	}

	logger.Info(ctx, "Scheduler started",
		"daily", s.cfg.Schedule.Daily,
		"minute", s.cfg.Schedule.Minute)

	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	logger.Info(ctx, "Scheduler stopped")
	return nil
}
