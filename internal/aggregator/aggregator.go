// Package aggregator rolls pain themes up against user groups.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// HighImpactThreshold marks cells where at least two people feel the pain with
// meaningful intensity and willingness to pay.
const HighImpactThreshold = 2.0

type Options struct {
	MinEvidencePerPain int
	MinGroupSize       int
}

func (o Options) withDefaults() Options {
	if o.MinEvidencePerPain <= 0 {
		o.MinEvidencePerPain = 3
	}
	if o.MinGroupSize <= 0 {
		o.MinGroupSize = 2
	}
	return o
}

// Group is a set of people sharing a segment, or a person type when the
// segment is unknown.
type Group struct {
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	Source      string      `json:"source"`
	MemberCount int         `json:"member_count"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type Cell struct {
	ThemeID         uuid.UUID   `json:"theme_id"`
	ThemeLabel      string      `json:"theme_label"`
	GroupKey        string      `json:"group_key"`
	Frequency       float64     `json:"frequency"`
	Intensity       string      `json:"intensity,omitempty"`
	IntensityScore  float64     `json:"intensity_score"`
	WillingnessPay  string      `json:"willingness_to_pay,omitempty"`
	WTPScore        float64     `json:"wtp_score"`
	ImpactScore     float64     `json:"impact_score"`
	EvidenceCount   int         `json:"evidence_count"`
	SampleVerbatims []string    `json:"sample_verbatims"`
	PersonIDs       []uuid.UUID `json:"person_ids"`
	PersonCount     int         `json:"person_count"`
}

type Summary struct {
	TotalPains      int `json:"total_pains"`
	TotalGroups     int `json:"total_groups"`
	TotalEvidence   int `json:"total_evidence"`
	HighImpactCells int `json:"high_impact_cells"`
}

type PainMatrix struct {
	Themes  []types.Theme `json:"pain_themes"`
	Groups  []Group       `json:"user_groups"`
	Cells   []Cell        `json:"cells"`
	Summary Summary       `json:"summary"`
}

// DeriveGroups buckets people by segment, falling back to person type.
// Groups below minSize are dropped.
func DeriveGroups(people []types.Person, minSize int) []Group {
	byKey := map[string]*Group{}
	for _, p := range people {
		source, name := "segment", strings.TrimSpace(p.Segment)
		if name == "" {
			source, name = "person_type", p.PersonType
		}
		if name == "" {
			name = types.PersonUnknown
		}
		key := source + ":" + strings.ToLower(name)
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, Name: name, Source: source}
			byKey[key] = g
		}
		g.MemberIDs = append(g.MemberIDs, p.ID)
	}

	out := make([]Group, 0, len(byKey))
	for _, g := range byKey {
		g.MemberCount = len(g.MemberIDs)
		if g.MemberCount < minSize {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberCount != out[j].MemberCount {
			return out[i].MemberCount > out[j].MemberCount
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// BuildPainMatrix crosses pain themes with user groups. Each cell only counts
// evidence whose person belongs to the group; cells without evidence and
// themes without cells are omitted. Thresholds filter the output only.
func BuildPainMatrix(themes []types.Theme, evidence []types.Evidence, people []types.Person, opts Options) PainMatrix {
	opts = opts.withDefaults()

	byID := make(map[uuid.UUID]types.Evidence, len(evidence))
	for _, ev := range evidence {
		byID[ev.ID] = ev
	}

	groups := DeriveGroups(people, opts.MinGroupSize)

	var cells []Cell
	used := map[uuid.UUID]bool{}
	totalEvidence := 0
	for _, th := range themes {
		if th.EvidenceCount < opts.MinEvidencePerPain {
			continue
		}
		totalEvidence += th.EvidenceCount
		for _, g := range groups {
			cell, ok := buildCell(th, g, byID)
			if !ok {
				continue
			}
			used[th.ID] = true
			cells = append(cells, cell)
		}
	}

	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].ImpactScore != cells[j].ImpactScore {
			return cells[i].ImpactScore > cells[j].ImpactScore
		}
		if cells[i].ThemeLabel != cells[j].ThemeLabel {
			return cells[i].ThemeLabel < cells[j].ThemeLabel
		}
		return cells[i].GroupKey < cells[j].GroupKey
	})

	var kept []types.Theme
	for _, th := range themes {
		if used[th.ID] {
			kept = append(kept, th)
		}
	}

	high := 0
	for _, c := range cells {
		if c.ImpactScore >= HighImpactThreshold {
			high++
		}
	}

	return PainMatrix{
		Themes: kept,
		Groups: groups,
		Cells:  cells,
		Summary: Summary{
			TotalPains:      len(kept),
			TotalGroups:     len(groups),
			TotalEvidence:   totalEvidence,
			HighImpactCells: high,
		},
	}
}

func buildCell(th types.Theme, g Group, evidence map[uuid.UUID]types.Evidence) (Cell, bool) {
	members := make(map[uuid.UUID]bool, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		members[id] = true
	}

	cell := Cell{ThemeID: th.ID, ThemeLabel: th.RepresentativeLabel, GroupKey: g.Key}
	var intensities, wtps []string
	persons := map[uuid.UUID]bool{}
	for _, id := range th.EvidenceIDs {
		ev, ok := evidence[id]
		if !ok || ev.PersonID == nil || !members[*ev.PersonID] {
			continue
		}
		cell.EvidenceCount++
		if !persons[*ev.PersonID] {
			persons[*ev.PersonID] = true
			cell.PersonIDs = append(cell.PersonIDs, *ev.PersonID)
		}
		priority := ev.Confidence
		if priority == "" {
			priority = "medium"
		}
		intensities = append(intensities, priority)
		// Evidence carries no willingness-to-pay signal yet.
		wtps = append(wtps, "medium")
		if ev.Verbatim != "" && len(cell.SampleVerbatims) < 3 {
			cell.SampleVerbatims = append(cell.SampleVerbatims, ev.Verbatim)
		}
	}
	if cell.EvidenceCount == 0 {
		return Cell{}, false
	}

	cell.PersonCount = len(cell.PersonIDs)
	if g.MemberCount > 0 {
		cell.Frequency = float64(cell.PersonCount) / float64(g.MemberCount)
	}
	cell.IntensityScore = averageIntensity(intensities)
	cell.Intensity = scoreToIntensity(cell.IntensityScore)
	cell.WTPScore = averageWTP(wtps)
	cell.WillingnessPay = scoreToWTP(cell.WTPScore)
	cell.ImpactScore = float64(cell.PersonCount) * cell.IntensityScore * cell.WTPScore
	return cell, true
}

func averageIntensity(priorities []string) float64 {
	if len(priorities) == 0 {
		return 0
	}
	var sum float64
	for _, p := range priorities {
		switch strings.ToLower(p) {
		case "critical":
			sum += 1.0
		case "high":
			sum += 0.75
		case "medium":
			sum += 0.5
		case "low":
			sum += 0.25
		default:
			sum += 0.5
		}
	}
	return sum / float64(len(priorities))
}

func averageWTP(signals []string) float64 {
	if len(signals) == 0 {
		return 0.5
	}
	var sum float64
	for _, w := range signals {
		switch strings.ToLower(w) {
		case "high":
			sum += 1.0
		case "medium":
			sum += 0.66
		case "low":
			sum += 0.33
		case "none":
		default:
			sum += 0.5
		}
	}
	return sum / float64(len(signals))
}

func scoreToIntensity(score float64) string {
	switch {
	case score >= 0.85:
		return "critical"
	case score >= 0.65:
		return "high"
	case score >= 0.4:
		return "medium"
	case score > 0:
		return "low"
	}
	return ""
}

func scoreToWTP(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.5:
		return "medium"
	case score >= 0.2:
		return "low"
	case score > 0:
		return "none"
	}
	return ""
}

// ThemeSource computes themes for a project.
type ThemeSource interface {
	ClusterFacets(ctx context.Context, projectID uuid.UUID, kindSlug string, threshold float64) ([]types.Theme, error)
}

type EvidenceSource interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]types.Evidence, error)
}

type PeopleSource interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]types.Person, error)
}

// Builder loads what BuildPainMatrix needs for one project.
type Builder struct {
	themes   ThemeSource
	evidence EvidenceSource
	people   PeopleSource
	opts     Options
	log      *logger.Logger
}

func NewBuilder(themes ThemeSource, evidence EvidenceSource, people PeopleSource, opts Options, log *logger.Logger) *Builder {
	return &Builder{themes: themes, evidence: evidence, people: people, opts: opts, log: log.Component("pain-matrix")}
}

func (b *Builder) Build(ctx context.Context, projectID uuid.UUID, threshold float64) (PainMatrix, error) {
	themes, err := b.themes.ClusterFacets(ctx, projectID, "pain", threshold)
	if err != nil {
		return PainMatrix{}, err
	}
	var ids []uuid.UUID
	for _, th := range themes {
		ids = append(ids, th.EvidenceIDs...)
	}
	evidence, err := b.evidence.GetByIDs(ctx, ids)
	if err != nil {
		return PainMatrix{}, fmt.Errorf("load theme evidence: %w", err)
	}
	people, err := b.people.ListByProject(ctx, projectID)
	if err != nil {
		return PainMatrix{}, fmt.Errorf("load project people: %w", err)
	}

	m := BuildPainMatrix(themes, evidence, people, b.opts)
	b.log.WithField("project_id", projectID).
		WithField("pains", m.Summary.TotalPains).
		WithField("groups", m.Summary.TotalGroups).
		WithField("cells", len(m.Cells)).
		WithField("high_impact", m.Summary.HighImpactCells).
		Info("pain matrix built")
	return m, nil
}
