package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

type stubGenerator struct {
	resp  Response
	err   error
	calls int
}

func (s *stubGenerator) ExtractEvidence(ctx context.Context, transcript types.Transcript, instructions string) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func f64(v float64) *float64 { return &v }

func sampleTranscript() types.Transcript {
	t := types.EmptyTranscript()
	t.FullTranscript = "How is onboarding going? The onboarding process was really painful for our team. We spent three weeks just getting set up."
	t.SpeakerTranscripts = []types.Utterance{
		{Speaker: "A", Text: "How is onboarding going?", Start: 0, End: 2000},
		{Speaker: "B", Text: "The onboarding process was really painful for our team.", Start: 2500, End: 7000},
		{Speaker: "B", Text: "We spent three weeks just getting set up.", Start: 7500, End: 11000},
	}
	return t
}

func TestExtractNormalizesAndAnchors(t *testing.T) {
	gen := &stubGenerator{resp: Response{
		Evidence: []EvidenceDraft{
			{
				Verbatim:     "The onboarding process was really painful for our team.",
				SpeakerLabel: "Speaker 2",
				Confidence:   "HIGH",
				Facets: []FacetDraft{
					{Kind: "Pain", Label: "painful  onboarding"},
					{Kind: "pain", Label: "Painful onboarding"},
					{Kind: "Feature Request", Label: "guided setup", FreeText: "wants a wizard"},
					{Kind: "", Label: "dropped"},
				},
			},
			{Verbatim: "  ", SpeakerLabel: "B"},
			{Verbatim: "The onboarding process was really painful for our team.", SpeakerLabel: "B"},
			{Verbatim: "We spent three weeks just getting set up.", SpeakerLabel: "B", AnchorStart: f64(7.5)},
		},
		Participants: []types.Participant{
			{Name: "Sarah  Chen", SpeakerLabel: "b", PersonType: "Respondent"},
			{Name: "Interviewer", SpeakerLabel: "A"},
		},
	}}

	res, err := New(gen, logger.Discard()).Extract(context.Background(), sampleTranscript(), "")
	require.NoError(t, err)
	require.Len(t, res.Bundles, 2)

	first := res.Bundles[0]
	assert.Equal(t, "SPEAKER B", first.Evidence.SpeakerLabel)
	assert.Equal(t, "high", first.Evidence.Confidence)
	require.NotNil(t, first.Evidence.AnchorStartMs)
	assert.EqualValues(t, 2500, *first.Evidence.AnchorStartMs)
	require.NotNil(t, first.Evidence.AnchorEndMs)
	assert.EqualValues(t, 7000, *first.Evidence.AnchorEndMs)

	require.Len(t, first.Facets, 2)
	assert.Equal(t, "pain", first.Facets[0].KindSlug)
	assert.Equal(t, "painful onboarding", first.Facets[0].Label)
	assert.Equal(t, "feature_request", first.Facets[1].KindSlug)
	require.NotNil(t, first.Facets[1].FreeText)

	second := res.Bundles[1]
	require.NotNil(t, second.Evidence.AnchorStartMs)
	assert.EqualValues(t, 7500, *second.Evidence.AnchorStartMs)
	assert.Equal(t, "medium", second.Evidence.Confidence)

	require.Len(t, res.Participants, 2)
	assert.Equal(t, "Sarah Chen", res.Participants[0].Name)
	assert.Equal(t, "SPEAKER B", res.Participants[0].SpeakerLabel)
	assert.Equal(t, types.PersonRespondent, res.Participants[0].PersonType)
	assert.False(t, res.Participants[0].Placeholder)
	assert.True(t, res.Participants[1].Placeholder)
	assert.True(t, res.SpeakerReviewNeeded)
}

func TestExtractPrefersTranscriptTimingOverModelAnchors(t *testing.T) {
	tr := types.EmptyTranscript()
	tr.FullTranscript = "Our invoices take days to reconcile by hand."
	tr.SpeakerTranscripts = []types.Utterance{
		{Speaker: "B", Text: "Our invoices take days to reconcile by hand.", Start: 120, End: 126},
	}
	gen := &stubGenerator{resp: Response{
		Evidence: []EvidenceDraft{
			{Verbatim: "Our invoices take days to reconcile by hand.", SpeakerLabel: "B", AnchorStart: f64(3), AnchorEnd: f64(5)},
			{Verbatim: "Something the transcript never says.", SpeakerLabel: "B", AnchorStart: f64(40), AnchorEnd: f64(30)},
		},
	}}

	res, err := New(gen, logger.Discard()).Extract(context.Background(), tr, "")
	require.NoError(t, err)
	require.Len(t, res.Bundles, 2)

	found := res.Bundles[0].Evidence
	require.NotNil(t, found.AnchorStartMs)
	assert.EqualValues(t, 120000, *found.AnchorStartMs)
	require.NotNil(t, found.AnchorEndMs)
	assert.EqualValues(t, 126000, *found.AnchorEndMs)

	// Not in the transcript: the model's start is used, its end precedes it.
	missing := res.Bundles[1].Evidence
	require.NotNil(t, missing.AnchorStartMs)
	assert.EqualValues(t, 40000, *missing.AnchorStartMs)
	assert.Nil(t, missing.AnchorEndMs)
}

func TestExtractNoReviewWhenAllSpeakersNamed(t *testing.T) {
	gen := &stubGenerator{resp: Response{
		Evidence:     []EvidenceDraft{{Verbatim: "We spent three weeks just getting set up.", SpeakerLabel: "B"}},
		Participants: []types.Participant{{Name: "Sarah Chen", SpeakerLabel: "SPEAKER B"}},
	}}
	res, err := New(gen, logger.Discard()).Extract(context.Background(), sampleTranscript(), "")
	require.NoError(t, err)
	assert.False(t, res.SpeakerReviewNeeded)
}

func TestExtractFailures(t *testing.T) {
	ex := New(&stubGenerator{err: errors.New("connection reset")}, logger.Discard())
	_, err := ex.Extract(context.Background(), sampleTranscript(), "")
	assert.True(t, apperr.Is(err, apperr.KindTransientUpstream))

	ex = New(&stubGenerator{resp: Response{}}, logger.Discard())
	_, err = ex.Extract(context.Background(), sampleTranscript(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	gen := &stubGenerator{}
	_, err = New(gen, logger.Discard()).Extract(context.Background(), types.EmptyTranscript(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, gen.calls)
}

func TestMockGeneratorProducesEvidence(t *testing.T) {
	res, err := New(MockGenerator{}, logger.Discard()).Extract(context.Background(), sampleTranscript(), "")
	require.NoError(t, err)
	require.Len(t, res.Bundles, 2)
	assert.Equal(t, "pain", res.Bundles[0].Facets[0].KindSlug)
	assert.True(t, res.SpeakerReviewNeeded)
}

func TestKindSlug(t *testing.T) {
	assert.Equal(t, "feature_request", KindSlug(" Feature Request "))
	assert.Equal(t, "survey_response", KindSlug("survey-response"))
	assert.Equal(t, "", KindSlug("  "))
}
