package evalrunner

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"attest/internal/ports"
)

// Scheduler enqueues a full evaluation run on a cron schedule, e.g.
// "0 5 * * *" for daily at 05:00. With an empty expression it does nothing.
type Scheduler struct {
	runs ports.RunRepository
	cron *cron.Cron
	log  *zap.Logger
}

func NewScheduler(runs ports.RunRepository, log *zap.Logger) *Scheduler {
	return &Scheduler{runs: runs, cron: cron.New(), log: log}
}

// Start validates the expression, registers the job, and begins the
// schedule. Stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, expr string) error {
	if expr == "" {
		s.log.Info("evaluation schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid evaluation schedule %q: %w", expr, err)
	}
	if _, err := s.cron.AddFunc(expr, func() {
		run, err := s.runs.CreateRun(ctx)
		if err != nil {
			s.log.Warn("scheduled run enqueue failed", zap.Error(err))
			return
		}
		s.log.Info("scheduled evaluation run enqueued", zap.String("run_id", run.ID))
	}); err != nil {
		return fmt.Errorf("schedule evaluation run: %w", err)
	}
	s.cron.Start()
	s.log.Info("evaluation scheduler started", zap.String("schedule", expr))

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
	return nil
}
