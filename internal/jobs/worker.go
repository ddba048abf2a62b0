package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
	StaleAfter   time.Duration
	Policy       RetryPolicy
}

// Worker claims runnable jobs and dispatches them to registered handlers.
type Worker struct {
	store    Store
	registry *Registry
	opts     WorkerOptions
	validate *validator.Validate
	log      *logger.Logger
}

func NewWorker(store Store, registry *Registry, opts WorkerOptions, log *logger.Logger) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	return &Worker{
		store:    store,
		registry: registry,
		opts:     opts,
		validate: validator.New(),
		log:      log.Component("job-worker"),
	}
}

// Run polls until ctx is done. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithField("concurrency", w.opts.Concurrency).Info("starting job worker pool")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.loop(ctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	log := w.log.WithField("worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker loop stopped")
			return
		case <-ticker.C:
			// Drain everything runnable before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					log.WithError(err).Warn("claim next runnable failed")
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job ran.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextRunnable(ctx, w.opts.StaleAfter)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(ctx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	jc := newJobContext(ctx, job, w.store, w.validate, w.log)
	log := jc.Log

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("no handler registered for job type")
		w.finish(ctx, job, nil, apperr.Errorf(apperr.KindInvalidArgument, "jobs.dispatch", "no handler registered for job_type=%s", job.JobType))
		return
	}

	log.Info("job started")
	started := time.Now()
	result, err := w.safeRun(h, jc)
	w.finish(ctx, job, result, err)
	log.WithField("duration_ms", time.Since(started).Milliseconds()).
		WithField("ok", err == nil).
		Info("job finished")
}

func (w *Worker) safeRun(h Handler, jc *JobContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			jc.Log.WithField("panic", r).Error("job handler panic")
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Run(jc)
}

// finish records the outcome. Fatal kinds and exhausted attempts go to dead;
// anything else is failed with a backoff delay and picked up again later.
func (w *Worker) finish(ctx context.Context, job *types.JobRun, result any, runErr error) {
	ctx = context.WithoutCancel(ctx)
	now := time.Now()
	updates := map[string]any{}

	if runErr == nil {
		updates["status"] = types.JobSucceeded
		updates["error"] = ""
		if result != nil {
			if data, err := json.Marshal(result); err == nil {
				updates["result"] = datatypes.JSON(data)
			}
		}
		w.update(ctx, job, updates)
		return
	}

	updates["error"] = runErr.Error()
	updates["last_error_at"] = now

	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = w.opts.Policy.MaxAttempts
	}

	switch {
	case errors.Is(runErr, context.Canceled) && !apperr.IsFatal(runErr):
		// Shutdown mid-run: hand the job back without waiting.
		updates["status"] = types.JobFailed
		updates["run_after"] = now
		if job.Attempts > 0 {
			updates["attempts"] = job.Attempts - 1
		}
	case apperr.IsFatal(runErr) || job.Attempts >= maxAttempts:
		updates["status"] = types.JobDead
	default:
		updates["status"] = types.JobFailed
		updates["run_after"] = now.Add(w.opts.Policy.Delay(job.Attempts))
	}

	jobLog := w.log.WithField("job_id", job.ID).WithField("status", updates["status"])
	jobLog.WithError(runErr).Warn("job failed")
	w.update(ctx, job, updates)
}

func (w *Worker) update(ctx context.Context, job *types.JobRun, updates map[string]any) {
	if err := w.store.UpdateFields(ctx, job.ID, updates); err != nil {
		w.log.WithField("job_id", job.ID).WithError(err).Error("persist job outcome failed")
	}
}
