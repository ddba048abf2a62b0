package processor_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/clustering"
	"interview-insights-go/internal/config"
	"interview-insights-go/internal/embedding"
	"interview-insights-go/internal/extractor"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/people"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/processor"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/store/storetest"
	"interview-insights-go/internal/transcription"
	"interview-insights-go/internal/types"
)

type countingTranscriber struct {
	calls atomic.Int32
	err   error
}

func (c *countingTranscriber) Transcribe(ctx context.Context, mediaURL string) (any, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return transcription.MockClient{}.Transcribe(ctx, mediaURL)
}

// namedGenerator wraps the mock generator and names speaker B.
type namedGenerator struct{}

func (namedGenerator) ExtractEvidence(ctx context.Context, t types.Transcript, instructions string) (extractor.Response, error) {
	resp, err := extractor.MockGenerator{}.ExtractEvidence(ctx, t, instructions)
	resp.Participants = []types.Participant{{
		Name:         "Dana Ruiz",
		SpeakerLabel: "B",
		Company:      "Ledgerly",
		PersonType:   types.PersonRespondent,
	}}
	return resp, err
}

type harness struct {
	store       *store.Store
	transcriber *countingTranscriber
	orch        *pipeline.Orchestrator
	interview   *types.Interview
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := storetest.New(t)
	log := logger.Discard()
	tr := &countingTranscriber{}

	embCfg := config.Embedding{Dimension: 8, BatchSize: 4, Kinds: []string{"pain", "gain"}}
	stages := processor.New(processor.Deps{
		Store:       s,
		Transcriber: tr,
		Sanitizer:   transcription.NewSanitizer(log),
		Extractor:   extractor.New(namedGenerator{}, log),
		Embeddings:  embedding.NewGenerator(s.Facets(), embedding.MockEmbedder{Dimension: 8}, embCfg, log),
		Clusters:    clustering.NewEngine(s.Facets(), 0, log),
		Resolver:    people.NewResolver(s.People(), log),
		Syncer:      people.NewFacetSyncer(s, log),
	}, log)

	iv := &types.Interview{
		AccountID: uuid.New(),
		ProjectID: uuid.New(),
		Title:     "Finance lead",
		Status:    types.StatusUploading,
		MediaURL:  "https://media.example.com/call.mp3",
	}
	require.NoError(t, s.Interviews().Create(context.Background(), iv))

	return &harness{
		store:       s,
		transcriber: tr,
		orch:        pipeline.NewOrchestrator(stages, s.Interviews(), pipeline.Options{}, log),
		interview:   iv,
	}
}

func (h *harness) payload() types.OrchestratePayload {
	return types.OrchestratePayload{
		InterviewID: h.interview.ID.String(),
		AccountID:   h.interview.AccountID.String(),
		ProjectID:   h.interview.ProjectID.String(),
	}
}

func TestFullRunProducesReadyInterview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.orch.Run(ctx, h.payload(), &pipeline.MemoryState{})
	require.NoError(t, err)
	assert.Equal(t, types.Steps, res.CompletedSteps)
	assert.EqualValues(t, 1, h.transcriber.calls.Load())

	iv, err := h.store.Interviews().Get(ctx, h.interview.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusReady, iv.Status)
	assert.Empty(t, iv.StatusDetail)
	assert.Contains(t, iv.Transcript, "reconciling invoices")
	require.NotNil(t, iv.DurationSeconds)
	assert.InDelta(t, 42.0, *iv.DurationSeconds, 1e-9)
	assert.False(t, iv.SpeakerReviewNeeded)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(iv.ProcessingMetadata, &meta))
	assert.Contains(t, meta, "completed_at")
	assert.Contains(t, meta, "embeddings")

	evidence, err := h.store.Evidence().ListByInterview(ctx, iv.ID)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	for _, ev := range evidence {
		require.NotNil(t, ev.PersonID, ev.Verbatim)
		require.NotNil(t, ev.AnchorStartMs)
	}

	facets, err := h.store.Facets().ListByInterview(ctx, iv.ID)
	require.NoError(t, err)
	for _, f := range facets {
		assert.Len(t, f.Embedding, 8, f.Label)
	}

	n, err := h.store.People().CountFacetLinks(ctx, *evidence[0].PersonID)
	require.NoError(t, err)
	assert.EqualValues(t, len(facets), n)
}

func TestResumeFromEvidenceReusesStoredTranscript(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Run(ctx, h.payload(), &pipeline.MemoryState{})
	require.NoError(t, err)
	before, err := h.store.Evidence().ListByInterview(ctx, h.interview.ID)
	require.NoError(t, err)

	p := h.payload()
	p.ResumeFrom = types.StepEvidence
	p.SkipSteps = []string{types.StepUpload}
	res, err := h.orch.Run(ctx, p, &pipeline.MemoryState{})
	require.NoError(t, err)
	assert.Equal(t, []string{types.StepUpload}, res.SkippedSteps)
	assert.EqualValues(t, 1, h.transcriber.calls.Load(), "upload must not run again")

	after, err := h.store.Evidence().ListByInterview(ctx, h.interview.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for _, ev := range after {
		for _, old := range before {
			assert.NotEqual(t, old.ID, ev.ID)
		}
	}

	iv, err := h.store.Interviews().Get(ctx, h.interview.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusReady, iv.Status)
}

func TestCompletedStepsAreNotRepeated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	state := &pipeline.MemoryState{}

	_, err := h.orch.Run(ctx, h.payload(), state)
	require.NoError(t, err)
	res, err := h.orch.Run(ctx, h.payload(), state)
	require.NoError(t, err)
	assert.Equal(t, types.Steps, res.SkippedSteps)
	assert.EqualValues(t, 1, h.transcriber.calls.Load())
}

func TestUploadFailureMarksInterviewError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.transcriber.err = apperr.E(apperr.KindValidation, "transcription.publish", errors.New("unsupported media"))

	state := &pipeline.MemoryState{}
	_, err := h.orch.Run(ctx, h.payload(), state)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, state.State.CompletedSteps)
	assert.Equal(t, types.StepUpload, state.State.CurrentStep)

	iv, err := h.store.Interviews().Get(ctx, h.interview.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, iv.Status)
	assert.Contains(t, iv.StatusDetail, "upload failed")
}

func TestEvidenceWithoutTranscriptFails(t *testing.T) {
	h := newHarness(t)
	p := h.payload()
	p.ResumeFrom = types.StepEvidence

	_, err := h.orch.Run(context.Background(), p, &pipeline.MemoryState{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, h.transcriber.calls.Load())
}
