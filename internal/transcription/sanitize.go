package transcription

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// Sanitizer reduces provider payloads of any shape to types.Transcript.
type Sanitizer struct {
	log *logger.Logger
}

func NewSanitizer(log *logger.Logger) *Sanitizer {
	return &Sanitizer{log: log.Component("transcript-sanitizer")}
}

// Sanitize never panics. Input may be nil, raw JSON bytes, a JSON or plain
// text string, a decoded map, or any JSON-marshallable struct. Malformed input
// yields the empty canonical transcript and a warning.
func (s *Sanitizer) Sanitize(raw any) (out types.Transcript) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", fmt.Sprint(r)).Warn("transcript sanitization panicked; using empty transcript")
			out = types.EmptyTranscript()
		}
	}()

	record, text, ok := toRecord(raw)
	if !ok {
		if raw != nil {
			s.log.WithField("type", fmt.Sprintf("%T", raw)).Warn("unrecognized transcript payload")
		}
		out = types.EmptyTranscript()
		out.FullTranscript = text
		return out
	}
	return sanitizeRecord(record)
}

// toRecord decodes raw into a map. A string that is not JSON comes back as
// plain transcript text.
func toRecord(raw any) (map[string]any, string, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, "", false
	case map[string]any:
		return v, "", true
	case []byte:
		return decodeRecord(string(v))
	case json.RawMessage:
		return decodeRecord(string(v))
	case string:
		return decodeRecord(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", false
		}
		return decodeRecord(string(b))
	}
}

func decodeRecord(s string) (map[string]any, string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, "", false
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, trimmed, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil || m == nil {
		return nil, "", false
	}
	return m, "", true
}

func sanitizeRecord(raw map[string]any) types.Transcript {
	out := types.EmptyTranscript()

	out.FullTranscript = firstString(raw, "full_transcript", "text")
	if d, ok := coerceNumber(raw["audio_duration"]); ok {
		out.AudioDuration = &d
	}
	out.Language = firstString(raw, "language", "language_code")

	out.SpeakerTranscripts = sanitizeUtterances(firstPresent(raw, "speaker_transcripts", "utterances"))
	out.Words = sanitizeWords(raw["words"])
	out.Chapters = sanitizeChapters(firstPresent(raw, "chapters", "auto_chapters", "segments"))

	if out.FullTranscript == "" && len(out.SpeakerTranscripts) > 0 {
		parts := make([]string, 0, len(out.SpeakerTranscripts))
		for _, u := range out.SpeakerTranscripts {
			if u.Text != "" {
				parts = append(parts, u.Text)
			}
		}
		out.FullTranscript = strings.Join(parts, " ")
	}
	return out
}

func sanitizeUtterances(v any) []types.Utterance {
	items, _ := v.([]any)
	out := make([]types.Utterance, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		u := types.Utterance{
			Speaker: speakerOf(firstPresent(row, "speaker", "speaker_label", "channel")),
			Text:    stringOf(row["text"]),
		}
		u.Start, _ = coerceNumber(firstPresent(row, "start", "start_time", "begin"))
		u.End, _ = coerceNumber(firstPresent(row, "end", "end_time", "finish", "stop"))
		if c, ok := coerceNumber(firstPresent(row, "confidence", "confidence_score")); ok {
			u.Confidence = &c
		}
		out = append(out, u)
	}
	return out
}

func sanitizeWords(v any) []types.Word {
	items, _ := v.([]any)
	out := make([]types.Word, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := stringOf(firstPresent(row, "text", "word"))
		start, ok := coerceNumber(firstPresent(row, "start", "start_time"))
		if text == "" || !ok {
			continue
		}
		end, _ := coerceNumber(firstPresent(row, "end", "end_time"))
		out = append(out, types.Word{Text: text, Start: start, End: end})
	}
	return out
}

func sanitizeChapters(v any) []types.Chapter {
	items, _ := v.([]any)
	out := make([]types.Chapter, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, ok := coerceNumber(firstPresent(row, "start_ms", "start"))
		if !ok {
			continue
		}
		end, _ := coerceNumber(firstPresent(row, "end_ms", "end"))
		out = append(out, types.Chapter{
			StartMs: start,
			EndMs:   end,
			Summary: firstString(row, "summary", "gist"),
			Title:   stringOf(row["title"]),
		})
	}
	return out
}

// firstPresent returns the first non-nil value among keys.
func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringOf(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func speakerOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

// coerceNumber accepts finite numbers and numeric strings.
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
