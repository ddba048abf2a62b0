// Package clustering groups semantically similar facets into themes.
package clustering

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

// DefaultThreshold is the cosine similarity at or above which two facets join.
const DefaultThreshold = 0.82

var themeNamespace = uuid.MustParse("6f1c2a7e-3d4b-5c8e-9a01-b2c3d4e5f607")

// FacetSource lists the embedded facets of one kind in a project.
type FacetSource interface {
	ListEmbedded(ctx context.Context, projectID uuid.UUID, kindSlug string) ([]types.EvidenceFacet, error)
}

type Engine struct {
	facets    FacetSource
	threshold float64
	log       *logger.Logger
}

func NewEngine(facets FacetSource, threshold float64, log *logger.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{facets: facets, threshold: threshold, log: log.Component("clustering")}
}

// ClusterFacets computes the current themes for one facet kind. A threshold
// of zero or less uses the engine default. Nothing is written.
func (e *Engine) ClusterFacets(ctx context.Context, projectID uuid.UUID, kindSlug string, threshold float64) ([]types.Theme, error) {
	if threshold <= 0 {
		threshold = e.threshold
	}
	facets, err := e.facets.ListEmbedded(ctx, projectID, kindSlug)
	if err != nil {
		return nil, fmt.Errorf("list embedded facets: %w", err)
	}
	themes := Cluster(facets, kindSlug, threshold)
	e.log.WithField("project_id", projectID).
		WithField("kind", kindSlug).
		WithField("facets", len(facets)).
		WithField("themes", len(themes)).
		Debug("facets clustered")
	return themes, nil
}

// Cluster links every pair of facets whose cosine similarity is at least
// threshold and returns the connected components as themes. Facets without
// an embedding are ignored. The output does not depend on input order.
func Cluster(facets []types.EvidenceFacet, kindSlug string, threshold float64) []types.Theme {
	var items []types.EvidenceFacet
	for _, f := range facets {
		if len(f.Embedding) > 0 && (kindSlug == "" || f.KindSlug == kindSlug) {
			items = append(items, f)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID.String() < items[j].ID.String() })

	uf := newUnionFind(len(items))
	for _, edge := range similarPairs(items, threshold) {
		uf.union(edge[0], edge[1])
	}

	groups := map[int][]int{}
	for i := range items {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	themes := make([]types.Theme, 0, len(groups))
	for _, members := range groups {
		themes = append(themes, buildTheme(items, members, kindSlug))
	}

	sort.Slice(themes, func(i, j int) bool {
		if themes[i].EvidenceCount != themes[j].EvidenceCount {
			return themes[i].EvidenceCount > themes[j].EvidenceCount
		}
		if themes[i].RepresentativeLabel != themes[j].RepresentativeLabel {
			return themes[i].RepresentativeLabel < themes[j].RepresentativeLabel
		}
		return themes[i].FacetIDs[0].String() < themes[j].FacetIDs[0].String()
	})
	assignIDs(themes)
	return themes
}

func similarPairs(items []types.EvidenceFacet, threshold float64) [][2]int {
	var edges [][2]int
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if Cosine(items[i].Embedding, items[j].Embedding) >= threshold {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return edges
}

func buildTheme(items []types.EvidenceFacet, members []int, kindSlug string) types.Theme {
	th := types.Theme{KindSlug: kindSlug}
	evidence := map[uuid.UUID]bool{}
	perLabel := map[string]map[uuid.UUID]bool{}
	labelSeen := map[string]bool{}

	for _, i := range members {
		f := items[i]
		th.FacetIDs = append(th.FacetIDs, f.ID)
		if th.KindSlug == "" {
			th.KindSlug = f.KindSlug
		}
		if !labelSeen[f.Label] {
			labelSeen[f.Label] = true
			th.Labels = append(th.Labels, f.Label)
			perLabel[f.Label] = map[uuid.UUID]bool{}
		}
		perLabel[f.Label][f.EvidenceID] = true
		if !evidence[f.EvidenceID] {
			evidence[f.EvidenceID] = true
			th.EvidenceIDs = append(th.EvidenceIDs, f.EvidenceID)
		}
	}

	sort.Slice(th.FacetIDs, func(i, j int) bool { return th.FacetIDs[i].String() < th.FacetIDs[j].String() })
	sort.Slice(th.EvidenceIDs, func(i, j int) bool { return th.EvidenceIDs[i].String() < th.EvidenceIDs[j].String() })
	sort.Slice(th.Labels, func(i, j int) bool { return labelLess(th.Labels[i], th.Labels[j]) })

	best := ""
	for _, l := range th.Labels {
		if best == "" || len(perLabel[l]) > len(perLabel[best]) {
			best = l
		}
	}
	th.RepresentativeLabel = best
	th.EvidenceCount = len(th.EvidenceIDs)
	return th
}

// labelLess orders case-insensitively, then by exact bytes.
func labelLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// assignIDs derives ids from kind and representative label. Repeated labels
// within one result get an ordinal suffix in output order.
func assignIDs(themes []types.Theme) {
	seen := map[string]int{}
	for i := range themes {
		key := themes[i].KindSlug + "|" + themes[i].RepresentativeLabel
		n := seen[key]
		seen[key] = n + 1
		if n > 0 {
			key = fmt.Sprintf("%s#%d", key, n)
		}
		themes[i].ID = uuid.NewSHA1(themeNamespace, []byte(key))
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero-length or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
