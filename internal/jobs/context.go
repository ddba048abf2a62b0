package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// JobContext is a handler's view of the claimed job run. Handlers never touch
// job_run directly.
type JobContext struct {
	Ctx context.Context
	Job *types.JobRun
	Log *logger.Logger

	store    Store
	validate *validator.Validate
}

func newJobContext(ctx context.Context, job *types.JobRun, store Store, v *validator.Validate, log *logger.Logger) *JobContext {
	return &JobContext{
		Ctx:      ctx,
		Job:      job,
		Log:      log.With(logrus.Fields{"job_id": job.ID, "job_type": job.JobType, "attempt": job.Attempts}),
		store:    store,
		validate: v,
	}
}

// Decode unmarshals the payload into dst and validates it. Failures are
// validation errors, so the job is not retried.
func (c *JobContext) Decode(dst any) error {
	const op = "jobs.decode"
	if err := json.Unmarshal(c.Job.Payload, dst); err != nil {
		return apperr.E(apperr.KindValidation, op, fmt.Errorf("decode payload: %w", err))
	}
	if err := validatePayload(c.validate, dst); err != nil {
		return apperr.E(apperr.KindValidation, op, err)
	}
	return nil
}

// LoadState decodes the persisted result into dst. It reports false when no
// state has been saved yet.
func (c *JobContext) LoadState(dst any) (bool, error) {
	if len(c.Job.Result) == 0 || string(c.Job.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(c.Job.Result, dst); err != nil {
		return false, fmt.Errorf("decode job state: %w", err)
	}
	return true, nil
}

// SaveState persists v as the job result and refreshes the heartbeat.
func (c *JobContext) SaveState(stage string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode job state: %w", err)
	}
	if err := c.store.UpdateFields(c.Ctx, c.Job.ID, map[string]any{
		"result": datatypes.JSON(data),
		"stage":  stage,
	}); err != nil {
		return err
	}
	c.Job.Result = datatypes.JSON(data)
	c.Job.Stage = stage
	return c.store.Heartbeat(c.Ctx, c.Job.ID)
}

func (c *JobContext) Heartbeat() error {
	return c.store.Heartbeat(c.Ctx, c.Job.ID)
}
