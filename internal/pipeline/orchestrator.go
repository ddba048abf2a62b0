// Package pipeline sequences the interview processing steps, persists the
// resume state between them and records failures on the interview.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// Run is the per-execution context handed to every stage.
type Run struct {
	InterviewID  uuid.UUID
	AccountID    uuid.UUID
	ProjectID    uuid.UUID
	MediaURL     string
	Instructions string
	// Transcript is set by the upload stage and reused by evidence in the
	// same run. When upload was skipped it is nil.
	Transcript *types.Transcript
}

// Stages is one implementation of every pipeline step.
type Stages interface {
	Upload(ctx context.Context, run *Run) error
	Evidence(ctx context.Context, run *Run) error
	Embed(ctx context.Context, run *Run) error
	Cluster(ctx context.Context, run *Run) error
	People(ctx context.Context, run *Run) error
	Finalize(ctx context.Context, run *Run) error
}

// StateStore persists the resume token between steps.
type StateStore interface {
	Load(ctx context.Context) (types.WorkflowState, bool, error)
	Save(ctx context.Context, step string, state types.WorkflowState) error
}

// StatusWriter records progress and failures on the interview.
type StatusWriter interface {
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	MergeMetadata(ctx context.Context, id uuid.UUID, add map[string]any) error
}

type Options struct {
	// StageAttempts bounds tries per step for transient upstream errors.
	StageAttempts  int
	StageBaseDelay time.Duration
}

type Result struct {
	InterviewID    string   `json:"interview_id"`
	CompletedSteps []string `json:"completed_steps"`
	SkippedSteps   []string `json:"skipped_steps,omitempty"`
}

type Orchestrator struct {
	stages     Stages
	interviews StatusWriter
	opts       Options
	validate   *validator.Validate
	log        *logger.Logger
}

func NewOrchestrator(stages Stages, interviews StatusWriter, opts Options, log *logger.Logger) *Orchestrator {
	if opts.StageAttempts < 1 {
		opts.StageAttempts = 1
	}
	if opts.StageBaseDelay <= 0 {
		opts.StageBaseDelay = 500 * time.Millisecond
	}
	return &Orchestrator{
		stages:     stages,
		interviews: interviews,
		opts:       opts,
		validate:   validator.New(),
		log:        log.Component("orchestrator"),
	}
}

// Run executes the steps in order for one interview. A failing step marks the interview as errored and stops the
// chain; steps that completed stay recorded in the state for the next try.
func (o *Orchestrator) Run(ctx context.Context, p types.OrchestratePayload, states StateStore) (Result, error) {
	if err := o.validate.Struct(p); err != nil {
		return Result{}, apperr.E(apperr.KindValidation, "pipeline.run", err)
	}
	run, err := newRun(p)
	if err != nil {
		return Result{}, err
	}
	log := o.log.WithField("interview_id", run.InterviewID)

	state, _, err := states.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load workflow state: %w", err)
	}
	state.InterviewID = p.InterviewID

	startIdx := 0
	if p.ResumeFrom != "" {
		startIdx = stepIndex(p.ResumeFrom)
		// An explicit resume reruns from that step once per job; later attempts
		// continue after their last completed step.
		if !state.ResumeApplied {
			state.CompletedSteps = completedBefore(state.CompletedSteps, startIdx)
			state.ResumeApplied = true
		}
	}
	skip := map[string]bool{}
	for _, s := range p.SkipSteps {
		skip[s] = true
	}

	res := Result{InterviewID: p.InterviewID}
	startedAt := time.Now().UTC().Format(time.RFC3339)
	for idx, step := range types.Steps {
		if !shouldExecute(step, idx, startIdx, skip, state) {
			res.SkippedSteps = append(res.SkippedSteps, step)
			continue
		}

		state.CurrentStep = step
		if err := states.Save(ctx, step, state); err != nil {
			return res, fmt.Errorf("save workflow state: %w", err)
		}

		stepLog := log.WithField("step", step)
		if err := o.interviews.MergeMetadata(ctx, run.InterviewID, map[string]any{
			"current_step": step,
			"started_at":   startedAt,
		}); err != nil {
			stepLog.WithError(err).Warn("record current step failed")
		}
		stepLog.Info("step started")
		started := time.Now()

		if err := o.runStep(ctx, step, run); err != nil {
			stepLog.WithError(err).Warn("step failed")
			o.markError(ctx, run.InterviewID, step, err)
			return res, err
		}

		state.CompletedSteps = append(state.CompletedSteps, step)
		state.CurrentStep = ""
		if err := states.Save(ctx, step, state); err != nil {
			return res, fmt.Errorf("save workflow state: %w", err)
		}
		stepLog.WithField("duration_ms", time.Since(started).Milliseconds()).Info("step completed")
	}

	res.CompletedSteps = state.CompletedSteps
	return res, nil
}

// shouldExecute skips explicitly skipped steps, steps before the resume
// point, and steps already completed by an earlier attempt.
func shouldExecute(step string, idx, startIdx int, skip map[string]bool, state types.WorkflowState) bool {
	if skip[step] || idx < startIdx {
		return false
	}
	return !state.Completed(step)
}

func (o *Orchestrator) runStep(ctx context.Context, step string, run *Run) error {
	fn := o.stageFunc(step)
	if fn == nil {
		return apperr.Errorf(apperr.KindInvalidArgument, "pipeline.step", "unknown step %q", step)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.opts.StageBaseDelay
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.opts.StageAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(ctx, run)
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		o.log.WithField("step", step).WithField("attempt", attempt).WithError(err).Warn("transient step failure")
		return err
	}, policy)
}

func (o *Orchestrator) stageFunc(step string) func(context.Context, *Run) error {
	switch step {
	case types.StepUpload:
		return o.stages.Upload
	case types.StepEvidence:
		return o.stages.Evidence
	case types.StepEmbed:
		return o.stages.Embed
	case types.StepCluster:
		return o.stages.Cluster
	case types.StepPeople:
		return o.stages.People
	case types.StepFinalize:
		return o.stages.Finalize
	}
	return nil
}

// markError sets the interview to error. Cancellation leaves the last
// committed status alone.
func (o *Orchestrator) markError(ctx context.Context, interviewID uuid.UUID, step string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := o.log.WithField("interview_id", interviewID)
	detail := fmt.Sprintf("%s failed: %v", step, err)
	if uerr := o.interviews.UpdateFields(ctx, interviewID, map[string]any{
		"status":        types.StatusError,
		"status_detail": detail,
	}); uerr != nil {
		log.WithError(uerr).Error("mark interview error failed")
	}
	if uerr := o.interviews.MergeMetadata(ctx, interviewID, map[string]any{
		"current_step": step,
		"failed_at":    time.Now().UTC().Format(time.RFC3339),
		"error":        err.Error(),
	}); uerr != nil {
		log.WithError(uerr).Warn("record failure metadata failed")
	}
}

func newRun(p types.OrchestratePayload) (*Run, error) {
	const op = "pipeline.run"
	interviewID, err := uuid.Parse(p.InterviewID)
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, op, err)
	}
	accountID, err := uuid.Parse(p.AccountID)
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, op, err)
	}
	projectID, err := uuid.Parse(p.ProjectID)
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, op, err)
	}
	return &Run{
		InterviewID:  interviewID,
		AccountID:    accountID,
		ProjectID:    projectID,
		MediaURL:     p.MediaURL,
		Instructions: p.Instructions,
	}, nil
}

func stepIndex(step string) int {
	for i, s := range types.Steps {
		if s == step {
			return i
		}
	}
	return 0
}

func completedBefore(completed []string, idx int) []string {
	var out []string
	for _, c := range completed {
		if stepIndex(c) < idx {
			out = append(out, c)
		}
	}
	return out
}
