// Package extractor turns canonical transcripts into evidence with facets and
// the participant mentions found alongside them.
package extractor

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/speaker"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
)

// Result is one extraction, ready for a single replace transaction.
type Result struct {
	Bundles             []store.EvidenceBundle
	Participants        []types.Participant
	SpeakerReviewNeeded bool
}

type Extractor struct {
	gen Generator
	log *logger.Logger
}

func New(gen Generator, log *logger.Logger) *Extractor {
	return &Extractor{gen: gen, log: log.Component("extractor")}
}

// Extract runs the generator and normalizes what it returns: speaker labels
// are canonicalized, anchors resolved from the transcript, facet kinds
// slugged and duplicates dropped. Nothing is persisted here.
func (e *Extractor) Extract(ctx context.Context, transcript types.Transcript, instructions string) (Result, error) {
	const op = "extractor.extract"
	if strings.TrimSpace(transcript.FullTranscript) == "" && len(transcript.SpeakerTranscripts) == 0 {
		return Result{}, apperr.Errorf(apperr.KindValidation, op, "transcript is empty")
	}

	resp, err := e.gen.ExtractEvidence(ctx, transcript, instructions)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.E(apperr.KindTransientUpstream, op, err)
		}
		return Result{}, err
	}

	idx := newAnchorIndex(transcript)
	res := Result{}
	seen := map[string]bool{}
	unanchored := 0

	for _, d := range resp.Evidence {
		verbatim := strings.TrimSpace(d.Verbatim)
		if verbatim == "" {
			continue
		}
		label := speaker.NormalizeSpeakerLabel(d.SpeakerLabel)
		key := label + "\x00" + strings.ToLower(verbatim)
		if seen[key] {
			continue
		}
		seen[key] = true

		ev := &types.Evidence{
			Verbatim:     verbatim,
			Gist:         strings.TrimSpace(d.Gist),
			SpeakerLabel: label,
			Confidence:   normalizeConfidence(d.Confidence),
		}
		e.anchor(ev, d, idx)
		if ev.AnchorStartMs == nil {
			unanchored++
		}

		res.Bundles = append(res.Bundles, store.EvidenceBundle{Evidence: ev, Facets: buildFacets(d.Facets)})
	}

	if len(res.Bundles) == 0 {
		return Result{}, apperr.Errorf(apperr.KindValidation, op, "generator returned no evidence")
	}

	res.Participants, res.SpeakerReviewNeeded = normalizeParticipants(resp.Participants, res.Bundles)

	e.log.WithField("evidence", len(res.Bundles)).
		WithField("participants", len(res.Participants)).
		WithField("unanchored", unanchored).
		WithField("speaker_review_needed", res.SpeakerReviewNeeded).
		Info("extraction complete")
	return res, nil
}

// anchor prefers timing found in the transcript itself. Model-supplied
// anchors are only used when the snippet cannot be located.
func (e *Extractor) anchor(ev *types.Evidence, d EvidenceDraft, idx *anchorIndex) {
	if start, end, ok := idx.resolve(ev.Verbatim); ok {
		ms := secondsToMs(start)
		ev.AnchorStartMs = &ms
		if end != nil && *end > start {
			endMs := secondsToMs(*end)
			ev.AnchorEndMs = &endMs
		}
		return
	}
	if d.AnchorStart != nil {
		if s, ok := coerceSeconds(*d.AnchorStart); ok {
			ms := secondsToMs(s)
			ev.AnchorStartMs = &ms
		}
	}
	if d.AnchorEnd != nil && ev.AnchorStartMs != nil {
		if s, ok := coerceSeconds(*d.AnchorEnd); ok {
			if ms := secondsToMs(s); ms > *ev.AnchorStartMs {
				ev.AnchorEndMs = &ms
			}
		}
	}
}

var reSlug = regexp.MustCompile(`[^a-z0-9]+`)

// KindSlug lower-cases a facet kind and joins words with underscores.
func KindSlug(kind string) string {
	return strings.Trim(reSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(kind)), "_"), "_")
}

func buildFacets(drafts []FacetDraft) []*types.EvidenceFacet {
	var out []*types.EvidenceFacet
	seen := map[string]bool{}
	for _, f := range drafts {
		kind := KindSlug(f.Kind)
		label := strings.Join(strings.Fields(f.Label), " ")
		if kind == "" || label == "" {
			continue
		}
		key := kind + "\x00" + strings.ToLower(label)
		if seen[key] {
			continue
		}
		seen[key] = true
		facet := &types.EvidenceFacet{KindSlug: kind, Label: label}
		if ft := strings.TrimSpace(f.FreeText); ft != "" {
			facet.FreeText = &ft
		}
		out = append(out, facet)
	}
	return out
}

func normalizeConfidence(c string) string {
	switch c = strings.ToLower(strings.TrimSpace(c)); c {
	case "critical", "high", "medium", "low":
		return c
	default:
		return "medium"
	}
}

// normalizeParticipants canonicalizes speaker labels and flags placeholder
// names. Review is needed when a placeholder is present or some evidence
// speaker has no named participant.
func normalizeParticipants(in []types.Participant, bundles []store.EvidenceBundle) ([]types.Participant, bool) {
	out := make([]types.Participant, 0, len(in))
	named := map[string]bool{}
	review := false
	for _, p := range in {
		p.Name = strings.Join(strings.Fields(p.Name), " ")
		p.Email = strings.TrimSpace(p.Email)
		p.Company = strings.TrimSpace(p.Company)
		if p.SpeakerLabel != "" {
			p.SpeakerLabel = speaker.NormalizeSpeakerLabel(p.SpeakerLabel)
		}
		switch strings.ToLower(strings.TrimSpace(p.PersonType)) {
		case types.PersonInternal:
			p.PersonType = types.PersonInternal
		case types.PersonRespondent:
			p.PersonType = types.PersonRespondent
		default:
			p.PersonType = types.PersonUnknown
		}
		p.Placeholder = p.Name == "" || speaker.IsPlaceholderName(p.Name)
		if p.Placeholder {
			review = true
		} else if p.SpeakerLabel != "" {
			named[p.SpeakerLabel] = true
		}
		out = append(out, p)
	}
	for _, b := range bundles {
		if !named[b.Evidence.SpeakerLabel] {
			review = true
			break
		}
	}
	return out, review
}
