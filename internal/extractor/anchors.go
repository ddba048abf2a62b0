package extractor

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"interview-insights-go/internal/types"
)

type wordEntry struct {
	text  string
	start float64
}

type segmentEntry struct {
	text   string
	tokens map[string]bool
	start  float64
	end    float64
	hasEnd bool
}

// anchorIndex resolves where in the recording a snippet was said.
type anchorIndex struct {
	words    []wordEntry
	segments []segmentEntry
	full     string
	duration *float64
}

// coerceSeconds treats values above 500 as milliseconds.
func coerceSeconds(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	if v > 500 {
		return v / 1000, true
	}
	return v, true
}

var reNonToken = regexp.MustCompile(`[^\p{L}\p{N}']+`)

func normalizeTokens(s string) []string {
	return strings.Fields(reNonToken.ReplaceAllString(strings.ToLower(s), " "))
}

var searchReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'",
	"\u201c", `"`, "\u201d", `"`,
	"\u00a0", " ",
)

func normalizeForSearch(s string) string {
	s = searchReplacer.Replace(strings.ToLower(s))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func newAnchorIndex(t types.Transcript) *anchorIndex {
	idx := &anchorIndex{
		full:     normalizeForSearch(t.FullTranscript),
		duration: t.AudioDuration,
	}
	for _, w := range t.Words {
		start, ok := coerceSeconds(w.Start)
		if !ok {
			continue
		}
		for _, tok := range normalizeTokens(w.Text) {
			idx.words = append(idx.words, wordEntry{text: tok, start: start})
		}
	}
	for _, u := range t.SpeakerTranscripts {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		start, ok := coerceSeconds(u.Start)
		if !ok {
			continue
		}
		end, hasEnd := coerceSeconds(u.End)
		idx.segments = append(idx.segments, newSegment(u.Text, start, end, hasEnd && u.End > u.Start))
	}
	for _, c := range t.Chapters {
		text := strings.TrimSpace(c.Summary + " " + c.Title)
		if text == "" {
			continue
		}
		idx.segments = append(idx.segments, newSegment(text, c.StartMs/1000, c.EndMs/1000, c.EndMs > c.StartMs))
	}
	return idx
}

func newSegment(text string, start, end float64, hasEnd bool) segmentEntry {
	tokens := map[string]bool{}
	for _, tok := range normalizeTokens(text) {
		tokens[tok] = true
	}
	return segmentEntry{text: normalizeForSearch(text), tokens: tokens, start: start, end: end, hasEnd: hasEnd}
}

// resolve returns the start (and, when a segment matched, end) in seconds.
// Stages: word timeline token match, segment substring, segment word overlap,
// then proportional position in the full transcript times duration.
func (idx *anchorIndex) resolve(snippet string) (start float64, end *float64, ok bool) {
	tokens := normalizeTokens(snippet)
	if len(tokens) == 0 {
		return 0, nil, false
	}

	if s, ok := idx.matchWords(tokens); ok {
		return s, nil, true
	}

	needle := normalizeForSearch(snippet)
	for _, seg := range idx.segments {
		if strings.Contains(seg.text, needle) {
			return seg.start, seg.endPtr(), true
		}
	}

	if seg, ok := idx.bestOverlap(tokens); ok {
		return seg.start, seg.endPtr(), true
	}

	if idx.duration != nil && *idx.duration > 0 && idx.full != "" {
		if pos := strings.Index(idx.full, needle); pos >= 0 {
			return float64(pos) / float64(len(idx.full)) * *idx.duration, nil, true
		}
	}
	return 0, nil, false
}

// matchWords finds the first run of consecutive timeline tokens equal to a
// prefix of the snippet, trying the longest prefix (up to six tokens) first.
func (idx *anchorIndex) matchWords(tokens []string) (float64, bool) {
	if len(idx.words) == 0 {
		return 0, false
	}
	maxK := len(tokens)
	if maxK > 6 {
		maxK = 6
	}
	minK := 2
	if maxK < minK {
		minK = maxK
	}
	for k := maxK; k >= minK; k-- {
		prefix := tokens[:k]
		for i := 0; i+k <= len(idx.words); i++ {
			match := true
			for j, tok := range prefix {
				if idx.words[i+j].text != tok {
					match = false
					break
				}
			}
			if match {
				return idx.words[i].start, true
			}
		}
	}
	return 0, false
}

// bestOverlap picks the segment sharing the most meaningful snippet tokens,
// requiring at least half of them (and never fewer than two).
func (idx *anchorIndex) bestOverlap(tokens []string) (segmentEntry, bool) {
	var meaningful []string
	seen := map[string]bool{}
	for _, tok := range tokens {
		if len(tok) > 2 && !seen[tok] {
			seen[tok] = true
			meaningful = append(meaningful, tok)
		}
	}
	need := int(math.Ceil(float64(len(meaningful)) / 2))
	if need < 2 {
		need = 2
	}

	best, bestScore := -1, 0
	for i, seg := range idx.segments {
		score := 0
		for _, tok := range meaningful {
			if seg.tokens[tok] {
				score++
			}
		}
		if score >= need && score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return segmentEntry{}, false
	}
	return idx.segments[best], true
}

func (s segmentEntry) endPtr() *float64 {
	if !s.hasEnd {
		return nil
	}
	e := s.end
	return &e
}

func secondsToMs(s float64) int64 {
	return int64(math.Round(s * 1000))
}
