// Package jobs is a small durable job queue on top of the job_run table:
// submission, a handler registry, and a polling worker pool with retries.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/types"
)

// Handle identifies a submitted job.
type Handle struct {
	ID uuid.UUID `json:"id"`
}

// Queue accepts work and reports on it.
type Queue interface {
	Submit(ctx context.Context, jobType string, payload any) (Handle, error)
	Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
}

// Store is the persistence the queue and worker need. *store.JobRunRepo
// satisfies it.
type Store interface {
	Create(ctx context.Context, job *types.JobRun) error
	Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
	ClaimNextRunnable(ctx context.Context, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Heartbeat(ctx context.Context, id uuid.UUID) error
}

// RetryPolicy bounds whole-job retries. Delay grows exponentially from
// BaseDelay and is capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns the wait before retrying after the given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	bo.Reset()

	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d = bo.NextBackOff()
	}
	return d
}

// GormQueue writes jobs to the job_run outbox table.
type GormQueue struct {
	store    Store
	policy   RetryPolicy
	validate *validator.Validate
}

func NewGormQueue(store Store, policy RetryPolicy) *GormQueue {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	return &GormQueue{store: store, policy: policy, validate: validator.New()}
}

// Submit validates the payload struct and enqueues it.
func (q *GormQueue) Submit(ctx context.Context, jobType string, payload any) (Handle, error) {
	const op = "jobs.submit"
	if jobType == "" {
		return Handle{}, apperr.Errorf(apperr.KindInvalidArgument, op, "job type is required")
	}
	if err := validatePayload(q.validate, payload); err != nil {
		return Handle{}, apperr.E(apperr.KindValidation, op, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, apperr.E(apperr.KindInvalidArgument, op, err)
	}

	now := time.Now()
	job := &types.JobRun{
		JobType:     jobType,
		Status:      types.JobQueued,
		MaxAttempts: q.policy.MaxAttempts,
		Payload:     datatypes.JSON(data),
		RunAfter:    &now,
	}
	if err := q.store.Create(ctx, job); err != nil {
		return Handle{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return Handle{ID: job.ID}, nil
}

func (q *GormQueue) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return q.store.Get(ctx, id)
}

func validatePayload(v *validator.Validate, payload any) error {
	if payload == nil {
		return fmt.Errorf("payload is required")
	}
	err := v.Struct(payload)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		// Not a struct (e.g. a map); nothing to validate.
		return nil
	}
	return err
}
