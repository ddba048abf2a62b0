package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/jobs"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

type InterviewStore interface {
	Create(ctx context.Context, in *types.Interview) error
	Get(ctx context.Context, id uuid.UUID) (*types.Interview, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type IntakeInput struct {
	AccountID    uuid.UUID `json:"account_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	Title        string    `json:"title"`
	MediaURL     string    `json:"media_url"`
	Instructions string    `json:"instructions,omitempty"`
}

type RegenerateInput struct {
	ResumeFrom   string   `json:"resume_from,omitempty"`
	SkipSteps    []string `json:"skip_steps,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// Service is the entry point for starting interview processing.
type Service struct {
	interviews InterviewStore
	queue      jobs.Queue
	log        *logger.Logger
}

func NewService(interviews InterviewStore, queue jobs.Queue, log *logger.Logger) *Service {
	return &Service{interviews: interviews, queue: queue, log: log.Component("pipeline-service")}
}

// Intake records a new interview and queues its full processing run.
func (s *Service) Intake(ctx context.Context, in IntakeInput) (*types.Interview, jobs.Handle, error) {
	const op = "pipeline.intake"
	if in.AccountID == uuid.Nil || in.ProjectID == uuid.Nil {
		return nil, jobs.Handle{}, apperr.Errorf(apperr.KindInvalidArgument, op, "account_id and project_id are required")
	}
	if strings.TrimSpace(in.MediaURL) == "" {
		return nil, jobs.Handle{}, apperr.Errorf(apperr.KindInvalidArgument, op, "media_url is required")
	}

	iv := &types.Interview{
		AccountID: in.AccountID,
		ProjectID: in.ProjectID,
		Title:     strings.TrimSpace(in.Title),
		Status:    types.StatusUploading,
		MediaURL:  strings.TrimSpace(in.MediaURL),
	}
	if err := s.interviews.Create(ctx, iv); err != nil {
		return nil, jobs.Handle{}, fmt.Errorf("create interview: %w", err)
	}

	h, err := s.queue.Submit(ctx, types.JobOrchestrateInterview, types.OrchestratePayload{
		InterviewID:  iv.ID.String(),
		AccountID:    iv.AccountID.String(),
		ProjectID:    iv.ProjectID.String(),
		MediaURL:     iv.MediaURL,
		Instructions: in.Instructions,
	})
	if err != nil {
		s.markSubmitFailed(ctx, iv.ID, err)
		return nil, jobs.Handle{}, err
	}
	s.log.WithField("interview_id", iv.ID).WithField("job_id", h.ID).Info("interview queued")
	return iv, h, nil
}

// Regenerate reruns part of the pipeline for an existing interview. By
// default it resumes from evidence and reuses the stored transcript.
func (s *Service) Regenerate(ctx context.Context, interviewID uuid.UUID, in RegenerateInput) (jobs.Handle, error) {
	const op = "pipeline.regenerate"
	iv, err := s.interviews.Get(ctx, interviewID)
	if err != nil {
		return jobs.Handle{}, err
	}

	resume := in.ResumeFrom
	skip := in.SkipSteps
	if resume == "" {
		resume = types.StepEvidence
	}
	if resume != types.StepUpload && len(skip) == 0 {
		skip = []string{types.StepUpload}
	}
	if stepIndex(resume) > 0 && strings.TrimSpace(iv.Transcript) == "" {
		return jobs.Handle{}, apperr.Errorf(apperr.KindValidation, op, "interview %s has no stored transcript", interviewID)
	}

	h, err := s.queue.Submit(ctx, types.JobOrchestrateInterview, types.OrchestratePayload{
		InterviewID:  iv.ID.String(),
		AccountID:    iv.AccountID.String(),
		ProjectID:    iv.ProjectID.String(),
		MediaURL:     iv.MediaURL,
		Instructions: in.Instructions,
		ResumeFrom:   resume,
		SkipSteps:    skip,
	})
	if err != nil {
		return jobs.Handle{}, err
	}
	s.log.WithField("interview_id", iv.ID).
		WithField("job_id", h.ID).
		WithField("resume_from", resume).
		Info("interview regeneration queued")
	return h, nil
}

func (s *Service) markSubmitFailed(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.interviews.UpdateFields(context.WithoutCancel(ctx), id, map[string]any{
		"status":        types.StatusError,
		"status_detail": "queue submit failed: " + cause.Error(),
	}); err != nil {
		s.log.WithField("interview_id", id).WithError(err).Error("mark interview error failed")
	}
}
