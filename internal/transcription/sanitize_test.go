package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/logger"
)

func newTestSanitizer() *Sanitizer { return NewSanitizer(logger.Discard()) }

func TestSanitizeNeverPanicsOnDegenerateInput(t *testing.T) {
	s := newTestSanitizer()
	inputs := []any{
		nil,
		map[string]any{},
		[]byte(`{}`),
		[]byte(`{"speaker_transcripts": "not a list"}`),
		[]byte(`{not json`),
		"",
		42,
		[]any{1, 2, 3},
		map[string]any{"utterances": []any{nil, "x", 7}},
	}
	for _, in := range inputs {
		var out = s.Sanitize(in)
		assert.NotNil(t, out.SpeakerTranscripts, "input %#v", in)
		assert.NotNil(t, out.Words)
		assert.NotNil(t, out.Chapters)
		assert.Nil(t, out.AudioDuration)
	}
}

func TestSanitizeMissingSpeakerTranscripts(t *testing.T) {
	out := newTestSanitizer().Sanitize(map[string]any{"full_transcript": "hello there"})
	assert.Equal(t, "hello there", out.FullTranscript)
	assert.Empty(t, out.SpeakerTranscripts)
}

func TestSanitizeAliases(t *testing.T) {
	raw := []byte(`{
		"text": "full text",
		"audio_duration": "61.5",
		"language_code": "en",
		"utterances": [
			{"speaker_label": "A", "text": "first", "start_time": "100", "finish": 900, "confidence_score": 0.9},
			{"channel": 2, "text": "second", "begin": 1000, "stop": "1800"}
		],
		"words": [{"text": "first", "start": 100}, {"word": "second", "start_time": "1000"}, {"text": "", "start": 5}],
		"auto_chapters": [{"start": 0, "end": 1800, "gist": "intro"}, {"title": "no start"}]
	}`)

	out := newTestSanitizer().Sanitize(raw)
	assert.Equal(t, "full text", out.FullTranscript)
	require.NotNil(t, out.AudioDuration)
	assert.InDelta(t, 61.5, *out.AudioDuration, 1e-9)
	assert.Equal(t, "en", out.Language)

	require.Len(t, out.SpeakerTranscripts, 2)
	first := out.SpeakerTranscripts[0]
	assert.Equal(t, "A", first.Speaker)
	assert.InDelta(t, 100, first.Start, 1e-9)
	assert.InDelta(t, 900, first.End, 1e-9)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, "2", out.SpeakerTranscripts[1].Speaker)
	assert.InDelta(t, 1800, out.SpeakerTranscripts[1].End, 1e-9)
	assert.Nil(t, out.SpeakerTranscripts[1].Confidence)

	require.Len(t, out.Words, 2)
	assert.Equal(t, "second", out.Words[1].Text)

	require.Len(t, out.Chapters, 1)
	assert.Equal(t, "intro", out.Chapters[0].Summary)
}

func TestSanitizePlainTextAndFallbackTranscript(t *testing.T) {
	s := newTestSanitizer()

	out := s.Sanitize("Interviewer: hi. Customer: hello.")
	assert.Equal(t, "Interviewer: hi. Customer: hello.", out.FullTranscript)
	assert.Empty(t, out.SpeakerTranscripts)

	out = s.Sanitize(map[string]any{
		"speaker_transcripts": []any{
			map[string]any{"speaker": "A", "text": "one"},
			map[string]any{"speaker": "B", "text": "two"},
		},
	})
	assert.Equal(t, "one two", out.FullTranscript)
}

type providerPayload struct {
	FullTranscript string `json:"full_transcript"`
	Utterances     []struct {
		Speaker string  `json:"speaker"`
		Text    string  `json:"text"`
		Start   float64 `json:"start"`
	} `json:"utterances"`
}

func TestSanitizeStructInput(t *testing.T) {
	var p providerPayload
	p.FullTranscript = "typed"
	p.Utterances = append(p.Utterances, struct {
		Speaker string  `json:"speaker"`
		Text    string  `json:"text"`
		Start   float64 `json:"start"`
	}{Speaker: "B", Text: "typed", Start: 1.5})

	out := newTestSanitizer().Sanitize(p)
	assert.Equal(t, "typed", out.FullTranscript)
	require.Len(t, out.SpeakerTranscripts, 1)
	assert.InDelta(t, 1.5, out.SpeakerTranscripts[0].Start, 1e-9)
}
