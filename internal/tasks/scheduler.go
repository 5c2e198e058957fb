package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/shared"
)

// Runner performs one sync pass; [SyncCoordinator] implements it.
type Runner interface {
	Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error)
}

// Scheduler runs sync passes on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *log.Logger

	// OnPass, when set, receives the outcome of every pass.
	OnPass func(*SyncResult, error)
}

// NewScheduler creates a scheduler. A non-positive interval defaults to 15 minutes.
func NewScheduler(runner Runner, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{runner: runner, interval: interval, logger: shared.WithLogger(logger, "component", "scheduler")}
}

// Start runs a pass now and then every interval until ctx is done. Pass
// failures are logged and retried on the next tick; Start only returns when
// ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped")
			return nil
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	result, err := s.runner.Run(ctx, nil)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("sync pass failed, retrying next interval", "error", err, "interval", s.interval)
	}
	if s.OnPass != nil {
		s.OnPass(result, err)
	}
}
