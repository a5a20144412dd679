package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"attest/internal/domain"
)

// RunRepository

func (db *DB) CreateRun(ctx context.Context) (domain.EvaluationRun, error) {
	run := domain.EvaluationRun{Status: domain.RunQueued}
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO evaluation_runs DEFAULT VALUES RETURNING id
    `).Scan(&run.ID)
	return run, err
}

func (db *DB) GetRun(ctx context.Context, runID string) (domain.EvaluationRun, error) {
	var run domain.EvaluationRun
	err := db.Pool.QueryRow(ctx, `
        SELECT id, status, progress, entities, error, started_at, finished_at
        FROM evaluation_runs WHERE id = $1
    `, runID).Scan(&run.ID, &run.Status, &run.Progress, &run.Entities, &run.Error,
		&run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EvaluationRun{}, domain.ErrNotFound
	}
	return run, err
}

// ClaimNext selects the oldest queued run using SKIP LOCKED and marks it
// running, so concurrent workers never claim the same run.
func (db *DB) ClaimNext(ctx context.Context) (run domain.EvaluationRun, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return run, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id FROM evaluation_runs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&run.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return run, false, nil
	}
	if err != nil {
		return run, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE evaluation_runs SET status='running', started_at=now() WHERE id=$1
    `, run.ID); err != nil {
		return run, false, err
	}
	run.Status = domain.RunRunning
	return run, true, nil
}

func (db *DB) UpdateProgress(ctx context.Context, runID string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	_, err := db.Pool.Exec(ctx, `UPDATE evaluation_runs SET progress=$2 WHERE id=$1`, runID, progress)
	return err
}

func (db *DB) MarkCompleted(ctx context.Context, runID string, entities int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE evaluation_runs
        SET status='completed', progress=1, entities=$2, finished_at=now()
        WHERE id=$1
    `, runID, entities)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, runID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
        UPDATE evaluation_runs
        SET status='failed', error=$2, finished_at=now()
        WHERE id=$1
    `, runID, reason)
	return err
}
