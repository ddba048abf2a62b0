package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"interview-insights-go/internal/speaker"
	"interview-insights-go/internal/types"
)

// Response is what a Generator returns for one transcript.
type Response struct {
	Evidence     []EvidenceDraft     `json:"evidence"`
	Participants []types.Participant `json:"participants"`
}

type EvidenceDraft struct {
	Verbatim     string       `json:"verbatim"`
	Gist         string       `json:"gist"`
	SpeakerLabel string       `json:"speaker_label"`
	AnchorStart  *float64     `json:"anchor_start"`
	AnchorEnd    *float64     `json:"anchor_end"`
	Confidence   string       `json:"confidence"`
	Facets       []FacetDraft `json:"facets"`
}

type FacetDraft struct {
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	FreeText string `json:"free_text"`
}

// Generator turns a transcript into evidence drafts.
type Generator interface {
	ExtractEvidence(ctx context.Context, transcript types.Transcript, instructions string) (Response, error)
}

// Completer is the JSON completion capability LLMGenerator needs.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string, target any) error
}

type LLMGenerator struct {
	llm Completer
}

func NewLLMGenerator(llm Completer) *LLMGenerator {
	return &LLMGenerator{llm: llm}
}

func (g *LLMGenerator) ExtractEvidence(ctx context.Context, transcript types.Transcript, instructions string) (Response, error) {
	var out Response
	if err := g.llm.CompleteJSON(ctx, BuildEvidencePrompt(transcript, instructions), &out); err != nil {
		return Response{}, err
	}
	return out, nil
}

// BuildEvidencePrompt renders the extraction prompt. Utterances are listed
// with their raw speaker labels and start offsets so the model can anchor.
func BuildEvidencePrompt(transcript types.Transcript, instructions string) string {
	var b strings.Builder
	if len(transcript.SpeakerTranscripts) > 0 {
		for _, u := range transcript.SpeakerTranscripts {
			fmt.Fprintf(&b, "[%s @ %.2f] %s\n", u.Speaker, u.Start, u.Text)
		}
	} else {
		b.WriteString(transcript.FullTranscript)
	}

	extra := strings.TrimSpace(instructions)
	if extra == "" {
		extra = "None."
	}

	schema, _ := json.MarshalIndent(Response{
		Evidence: []EvidenceDraft{{
			Facets: []FacetDraft{{}},
		}},
		Participants: []types.Participant{{}},
	}, "", "  ")

	return fmt.Sprintf(`You are a customer research analyst. Break the interview transcript below into
atomic evidence: short verbatim statements, each one a single observation.

For every evidence item:
- "verbatim" is copied exactly from the transcript.
- "gist" is a one-line paraphrase.
- "speaker_label" is the transcript speaker label that said it.
- "anchor_start" / "anchor_end" are offsets from the transcript when known, else null.
- "confidence" is one of critical, high, medium, low and reflects how strongly it was expressed.
- "facets" tag the evidence. "kind" is one of pain, gain, goal, job, workflow, tool,
  quote, survey_response, feature_request. "label" is a short reusable noun phrase
  (3-6 words) so similar statements across interviews share labels.

List every participant with their real name when it is said or can be inferred,
their "speaker_label", email, company, role and "person_type" (internal or respondent).
Use a generic label such as "Participant 1" when the name is unknown.

Additional instructions:
%s

Return ONLY valid JSON matching this shape:
%s

TRANSCRIPT:
%s
`, extra, string(schema), b.String())
}

// MockGenerator derives evidence straight from utterances. Enabled by
// USE_MOCK_LLM=true.
type MockGenerator struct{}

var painMarkers = []string{"lose", "slow", "hard", "frustrat", "manual", "annoy", "pain", "broken", "hours"}

func (MockGenerator) ExtractEvidence(ctx context.Context, transcript types.Transcript, instructions string) (Response, error) {
	var out Response
	seen := map[string]bool{}
	for _, u := range transcript.SpeakerTranscripts {
		text := strings.TrimSpace(u.Text)
		if len(strings.Fields(text)) < 5 || strings.HasSuffix(text, "?") {
			continue
		}
		kind := "gain"
		lower := strings.ToLower(text)
		for _, m := range painMarkers {
			if strings.Contains(lower, m) {
				kind = "pain"
				break
			}
		}
		out.Evidence = append(out.Evidence, EvidenceDraft{
			Verbatim:     text,
			Gist:         text,
			SpeakerLabel: u.Speaker,
			Confidence:   "medium",
			Facets:       []FacetDraft{{Kind: kind, Label: mockLabel(lower)}},
		})
		label := speaker.NormalizeSpeakerLabel(u.Speaker)
		if !seen[label] {
			seen[label] = true
			out.Participants = append(out.Participants, types.Participant{
				Name:         "Participant " + strings.TrimPrefix(label, "SPEAKER "),
				SpeakerLabel: u.Speaker,
				PersonType:   types.PersonRespondent,
			})
		}
	}
	return out, nil
}

func mockLabel(lower string) string {
	words := strings.Fields(strings.Trim(lower, ".!?"))
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}
