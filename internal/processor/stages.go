// Package processor implements the interview pipeline steps on top of the
// store and the upstream clients.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/clustering"
	"interview-insights-go/internal/embedding"
	"interview-insights-go/internal/extractor"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/people"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/transcription"
	"interview-insights-go/internal/types"
)

// Deps are the collaborators each step needs.
type Deps struct {
	Store       *store.Store
	Transcriber transcription.Transcriber
	Sanitizer   *transcription.Sanitizer
	Extractor   *extractor.Extractor
	Embeddings  *embedding.Generator
	Clusters    *clustering.Engine
	Resolver    *people.Resolver
	Syncer      *people.FacetSyncer
	// ClusterKind is the facet kind themed after embedding. Defaults to pain.
	ClusterKind string
}

type Stages struct {
	Deps
	log *logger.Logger
}

var _ pipeline.Stages = (*Stages)(nil)

func New(deps Deps, log *logger.Logger) *Stages {
	if deps.ClusterKind == "" {
		deps.ClusterKind = "pain"
	}
	return &Stages{Deps: deps, log: log.Component("processor")}
}

// Upload fetches the provider transcript, reduces it to the canonical shape
// and stores it on the interview.
func (s *Stages) Upload(ctx context.Context, run *pipeline.Run) error {
	const op = "processor.upload"
	iv, err := s.setStatus(ctx, run.InterviewID, types.StatusProcessing)
	if err != nil {
		return err
	}

	mediaURL := strings.TrimSpace(run.MediaURL)
	if mediaURL == "" {
		mediaURL = strings.TrimSpace(iv.MediaURL)
	}
	if mediaURL == "" {
		return apperr.Errorf(apperr.KindValidation, op, "interview %s has no media url", run.InterviewID)
	}

	raw, err := s.Transcriber.Transcribe(ctx, mediaURL)
	if err != nil {
		return err
	}
	transcript := s.Sanitizer.Sanitize(raw)
	if strings.TrimSpace(transcript.FullTranscript) == "" && len(transcript.SpeakerTranscripts) == 0 {
		return apperr.Errorf(apperr.KindValidation, op, "transcription returned no text")
	}

	formatted, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	updates := map[string]any{
		"status":               types.StatusTranscribed,
		"media_url":            mediaURL,
		"transcript":           transcript.FullTranscript,
		"transcript_formatted": datatypes.JSON(formatted),
	}
	if transcript.AudioDuration != nil {
		updates["duration_seconds"] = *transcript.AudioDuration
	}
	if err := s.Store.Interviews().UpdateFields(ctx, run.InterviewID, updates); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}

	run.Transcript = &transcript
	s.log.WithField("interview_id", run.InterviewID).
		WithField("utterances", len(transcript.SpeakerTranscripts)).
		WithField("words", len(transcript.Words)).
		Info("transcript stored")
	return nil
}

// Evidence extracts evidence from the transcript and replaces the interview's
// previous evidence set in one transaction.
func (s *Stages) Evidence(ctx context.Context, run *pipeline.Run) error {
	const op = "processor.evidence"
	iv, err := s.setStatus(ctx, run.InterviewID, types.StatusAnalyzing)
	if err != nil {
		return err
	}

	transcript := run.Transcript
	if transcript == nil {
		if len(iv.TranscriptFormatted) == 0 {
			return apperr.Errorf(apperr.KindValidation, op, "interview %s has no stored transcript", run.InterviewID)
		}
		t := types.EmptyTranscript()
		if err := json.Unmarshal(iv.TranscriptFormatted, &t); err != nil {
			return apperr.E(apperr.KindValidation, op, fmt.Errorf("decode stored transcript: %w", err))
		}
		transcript = &t
	}

	res, err := s.Extractor.Extract(ctx, *transcript, run.Instructions)
	if err != nil {
		return err
	}
	n, err := s.Store.Evidence().ReplaceForInterview(ctx, iv, res.Bundles)
	if err != nil {
		return err
	}

	participants, err := json.Marshal(res.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	if err := s.Store.Interviews().UpdateFields(ctx, run.InterviewID, map[string]any{
		"participants":          datatypes.JSON(participants),
		"speaker_review_needed": res.SpeakerReviewNeeded,
	}); err != nil {
		return fmt.Errorf("store participants: %w", err)
	}

	s.log.WithField("interview_id", run.InterviewID).WithField("evidence", n).Info("evidence replaced")
	return nil
}

// Embed fills in embeddings for the interview's facets. Individual failures
// are tolerated; a batch where nothing succeeded is retried.
func (s *Stages) Embed(ctx context.Context, run *pipeline.Run) error {
	rep, err := s.Embeddings.GenerateForInterview(ctx, run.InterviewID)
	if err != nil {
		return err
	}
	if rep.Total > 0 && rep.Succeeded == 0 {
		return apperr.Errorf(apperr.KindTransientUpstream, "processor.embed",
			"no embeddings generated for %d facets: %s", rep.Total, strings.Join(rep.Errors, "; "))
	}
	return s.Store.Interviews().MergeMetadata(ctx, run.InterviewID, map[string]any{
		"embeddings": map[string]int{"total": rep.Total, "succeeded": rep.Succeeded, "failed": rep.Failed},
	})
}

// Cluster recomputes the project's themes so the interview's new facets are
// reflected. Themes are derived on demand and not stored.
func (s *Stages) Cluster(ctx context.Context, run *pipeline.Run) error {
	themes, err := s.Clusters.ClusterFacets(ctx, run.ProjectID, s.ClusterKind, 0)
	if err != nil {
		return err
	}
	s.log.WithField("project_id", run.ProjectID).WithField("themes", len(themes)).Info("project themes refreshed")
	return s.Store.Interviews().MergeMetadata(ctx, run.InterviewID, map[string]any{
		"themes": map[string]any{"kind": s.ClusterKind, "count": len(themes)},
	})
}

// People resolves named participants, links them to the interview and their
// evidence, then refreshes person facet links.
func (s *Stages) People(ctx context.Context, run *pipeline.Run) error {
	iv, err := s.Store.Interviews().Get(ctx, run.InterviewID)
	if err != nil {
		return err
	}
	var participants []types.Participant
	if len(iv.Participants) > 0 {
		if err := json.Unmarshal(iv.Participants, &participants); err != nil {
			return apperr.E(apperr.KindValidation, "processor.people", fmt.Errorf("decode participants: %w", err))
		}
	}

	log := s.log.WithField("interview_id", run.InterviewID)
	review := iv.SpeakerReviewNeeded
	resolved := 0
	for _, p := range participants {
		if p.Placeholder {
			continue
		}
		res, err := s.Resolver.Resolve(ctx, run.AccountID, &run.ProjectID, people.MentionFromParticipant(p))
		if err != nil {
			if apperr.Is(err, apperr.KindValidation) {
				log.WithField("name", p.Name).WithError(err).Warn("participant needs review")
				review = true
				continue
			}
			return err
		}
		if _, err := s.Store.People().LinkInterview(ctx, &types.InterviewPerson{
			InterviewID:   run.InterviewID,
			PersonID:      res.ID,
			ProjectID:     run.ProjectID,
			TranscriptKey: p.SpeakerLabel,
			DisplayName:   p.Name,
			Role:          p.Role,
		}); err != nil {
			return fmt.Errorf("link interview person: %w", err)
		}
		if p.SpeakerLabel != "" {
			if _, err := s.Store.Evidence().LinkSpeaker(ctx, run.InterviewID, p.SpeakerLabel, res.ID); err != nil {
				return fmt.Errorf("link speaker evidence: %w", err)
			}
		}
		resolved++
	}

	linked, err := s.Syncer.Sync(ctx, run.ProjectID, run.InterviewID, uuid.Nil)
	if err != nil {
		return err
	}
	if review != iv.SpeakerReviewNeeded {
		if err := s.Store.Interviews().UpdateFields(ctx, run.InterviewID, map[string]any{"speaker_review_needed": review}); err != nil {
			return err
		}
	}
	log.WithField("resolved", resolved).WithField("facet_links", linked).Info("people linked")
	return nil
}

// Finalize marks the interview ready.
func (s *Stages) Finalize(ctx context.Context, run *pipeline.Run) error {
	if err := s.Store.Interviews().MergeMetadata(ctx, run.InterviewID, map[string]any{
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	return s.Store.Interviews().UpdateFields(ctx, run.InterviewID, map[string]any{
		"status":        types.StatusReady,
		"status_detail": "",
	})
}

func (s *Stages) setStatus(ctx context.Context, id uuid.UUID, status string) (*types.Interview, error) {
	if err := s.Store.Interviews().UpdateFields(ctx, id, map[string]any{"status": status}); err != nil {
		return nil, err
	}
	return s.Store.Interviews().Get(ctx, id)
}
