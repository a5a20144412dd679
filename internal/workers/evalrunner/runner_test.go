package evalrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attest/internal/adapters/memory"
	"attest/internal/domain"
)

type fakeProcessor struct {
	entities int
	err      error
}

func (p *fakeProcessor) EvaluateAll(ctx context.Context, progress func(done, total int)) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	for i := 1; i <= p.entities; i++ {
		progress(i, p.entities)
	}
	return p.entities, nil
}

func waitForRun(t *testing.T, store *memory.Store, runID string, want domain.RunStatus) domain.EvaluationRun {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		run, err := store.GetRun(context.Background(), runID)
		require.NoError(t, err)
		if run.Status == want {
			return run
		}
		select {
		case <-deadline:
			t.Fatalf("run %s stuck in %s, want %s", runID, run.Status, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunProcessesQueuedRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	run, err := store.CreateRun(ctx)
	require.NoError(t, err)

	Run(ctx, store, &fakeProcessor{entities: 6}, 2, 10*time.Millisecond, zap.NewNop())

	done := waitForRun(t, store, run.ID, domain.RunCompleted)
	assert.Equal(t, 6, done.Entities)
	assert.Equal(t, 1.0, done.Progress)
	assert.NotNil(t, done.FinishedAt)
}

func TestRunMarksFailedOnProcessorError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	run, err := store.CreateRun(ctx)
	require.NoError(t, err)

	Run(ctx, store, &fakeProcessor{err: errors.New("hierarchy unavailable")}, 1, 10*time.Millisecond, zap.NewNop())

	failed := waitForRun(t, store, run.ID, domain.RunFailed)
	assert.Equal(t, "hierarchy unavailable", failed.Error)
}

func TestRunDrainsBacklog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.CreateRun(ctx)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	Run(ctx, store, &fakeProcessor{entities: 1}, 1, 10*time.Millisecond, zap.NewNop())

	for _, id := range ids {
		waitForRun(t, store, id, domain.RunCompleted)
	}
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	s := NewScheduler(memory.NewStore(), zap.NewNop())
	err := s.Start(context.Background(), "not a cron line")
	assert.Error(t, err)
}

func TestSchedulerNoopWithoutExpression(t *testing.T) {
	s := NewScheduler(memory.NewStore(), zap.NewNop())
	assert.NoError(t, s.Start(context.Background(), ""))
}
