package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/types"
)

func TestCoerceSeconds(t *testing.T) {
	s, ok := coerceSeconds(12.5)
	require.True(t, ok)
	assert.Equal(t, 12.5, s)

	s, ok = coerceSeconds(12500)
	require.True(t, ok)
	assert.Equal(t, 12.5, s)

	_, ok = coerceSeconds(-1)
	assert.False(t, ok)
}

func TestResolveFromWordTimeline(t *testing.T) {
	tr := types.EmptyTranscript()
	tr.Words = []types.Word{
		{Text: "We", Start: 1.0}, {Text: "lose", Start: 1.2}, {Text: "hours", Start: 1.5},
		{Text: "every", Start: 1.9}, {Text: "week", Start: 2.2},
	}
	start, end, ok := newAnchorIndex(tr).resolve("we lose hours every week on exports")
	require.True(t, ok)
	assert.Equal(t, 1.0, start)
	assert.Nil(t, end)
}

func TestResolveFromSegmentSubstring(t *testing.T) {
	tr := types.EmptyTranscript()
	tr.SpeakerTranscripts = []types.Utterance{
		{Speaker: "A", Text: "Tell me about reporting.", Start: 0, End: 3},
		{Speaker: "B", Text: "Honestly the “export” button never works.", Start: 4, End: 9},
	}
	start, end, ok := newAnchorIndex(tr).resolve(`the "export" button never works`)
	require.True(t, ok)
	assert.Equal(t, 4.0, start)
	require.NotNil(t, end)
	assert.Equal(t, 9.0, *end)
}

func TestResolveFromWordOverlap(t *testing.T) {
	tr := types.EmptyTranscript()
	tr.SpeakerTranscripts = []types.Utterance{
		{Speaker: "A", Text: "What tools do you use?", Start: 0, End: 2000},
		{Speaker: "B", Text: "Mostly spreadsheets, and the spreadsheets break constantly when shared.", Start: 2500, End: 8000},
	}
	start, _, ok := newAnchorIndex(tr).resolve("spreadsheets break when shared across teams")
	require.True(t, ok)
	assert.Equal(t, 2.5, start)
}

func TestResolveFromTranscriptRatio(t *testing.T) {
	tr := types.EmptyTranscript()
	tr.FullTranscript = "aaaa bbbb cccc dddd"
	d := 100.0
	tr.AudioDuration = &d
	start, end, ok := newAnchorIndex(tr).resolve("cccc dddd")
	require.True(t, ok)
	assert.Nil(t, end)
	assert.InDelta(t, 10.0/19.0*100, start, 0.001)
}

func TestResolveMisses(t *testing.T) {
	tr := types.EmptyTranscript()
	tr.SpeakerTranscripts = []types.Utterance{{Speaker: "A", Text: "nothing relevant here", Start: 0, End: 1}}
	_, _, ok := newAnchorIndex(tr).resolve("completely different statement about billing")
	assert.False(t, ok)

	_, _, ok = newAnchorIndex(tr).resolve("  ...  ")
	assert.False(t, ok)
}
