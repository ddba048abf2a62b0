package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"interview-insights-go/internal/types"
)

type JobRunRepo struct {
	db      *gorm.DB
	dialect string
}

func (r *JobRunRepo) Create(ctx context.Context, job *types.JobRun) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRunRepo) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	var job types.JobRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("job_run.get", err)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNextRunnable locks the oldest runnable job and marks it running. A job
// is runnable when queued, failed with attempts left and its run_after
// passed, or running with a heartbeat older than staleRunning. It returns
// nil when nothing is runnable.
func (r *JobRunRepo) ClaimNextRunnable(ctx context.Context, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now()
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := r.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx
		if r.dialect == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		qErr := q.Where(`
        (
          (status = ? AND (run_after IS NULL OR run_after <= ?))
          OR (
            status = ?
            AND attempts < max_attempts
            AND (run_after IS NULL OR run_after <= ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobQueued, now, types.JobFailed, now, types.JobRunning, staleCutoff).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.JobRun{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(map[string]any{
				"status":       types.JobRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = types.JobRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *JobRunRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *JobRunRepo) Heartbeat(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.UpdateFields(ctx, id, map[string]any{"heartbeat_at": now, "updated_at": now})
}
