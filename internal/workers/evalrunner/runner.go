// Package evalrunner drives batch evaluation runs: a dispatcher claims
// queued runs and hands them to workers, and an optional cron schedule
// enqueues a fresh run periodically.
package evalrunner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"attest/internal/ports"
)

// Processor executes one evaluation run, reporting entity progress through
// the callback.
type Processor interface {
	EvaluateAll(ctx context.Context, progress func(done, total int)) (int, error)
}

// Run starts worker goroutines that claim queued evaluation runs and process
// them. Blocks only in background goroutines; returns immediately.
func Run(ctx context.Context, repo ports.RunRepository, processor Processor, concurrency int, pollInterval time.Duration, log *zap.Logger) {
	if concurrency < 1 {
		return
	}
	jobs := make(chan string, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			case <-ticker.C:
				for {
					run, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Warn("run claim failed", zap.Error(err))
						break
					}
					if !found {
						break
					}
					jobs <- run.ID
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for runID := range jobs {
				if err := process(ctx, repo, processor, runID); err != nil {
					log.Warn("evaluation run failed",
						zap.Int("worker", idx),
						zap.String("run_id", runID),
						zap.Error(err))
				}
			}
		}(i)
	}
}

func process(ctx context.Context, repo ports.RunRepository, processor Processor, runID string) error {
	entities, err := processor.EvaluateAll(ctx, func(done, total int) {
		if total == 0 {
			return
		}
		_ = repo.UpdateProgress(ctx, runID, float64(done)/float64(total))
	})
	if err != nil {
		_ = repo.MarkFailed(ctx, runID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, runID, entities)
}
