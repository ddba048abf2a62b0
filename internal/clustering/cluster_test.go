package clustering

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

func mkFacet(label string, evidence uuid.UUID, vec ...float32) types.EvidenceFacet {
	return types.EvidenceFacet{ID: uuid.New(), EvidenceID: evidence, KindSlug: "pain", Label: label, Embedding: vec}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestClusterIsTransitive(t *testing.T) {
	// a~b and b~c clear the threshold, a~c does not.
	a := mkFacet("slow exports", uuid.New(), 1, 0, 0)
	b := mkFacet("exports take forever", uuid.New(), 0.9, 0.43, 0)
	c := mkFacet("export timeouts", uuid.New(), 0.63, 0.77, 0)
	d := mkFacet("billing confusion", uuid.New(), 0, 0, 1)
	require.Less(t, Cosine(a.Embedding, c.Embedding), 0.82)

	themes := Cluster([]types.EvidenceFacet{a, b, c, d}, "pain", 0.82)
	require.Len(t, themes, 2)
	assert.Len(t, themes[0].FacetIDs, 3)
	assert.Equal(t, 3, themes[0].EvidenceCount)
	assert.Len(t, themes[1].FacetIDs, 1)
	assert.Equal(t, "billing confusion", themes[1].RepresentativeLabel)
}

func TestClusterIsIdempotentAndOrderIndependent(t *testing.T) {
	e1, e2 := uuid.New(), uuid.New()
	facets := []types.EvidenceFacet{
		mkFacet("slow exports", e1, 1, 0),
		mkFacet("slow exports", e2, 0.99, 0.05),
		mkFacet("Exports slow", e1, 0.98, 0.1),
		mkFacet("sso broken", uuid.New(), 0, 1),
		mkFacet("no embedding", uuid.New()),
	}
	first := Cluster(facets, "pain", 0.82)

	shuffled := append([]types.EvidenceFacet(nil), facets...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second := Cluster(shuffled, "pain", 0.82)

	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "slow exports", first[0].RepresentativeLabel)
	assert.Equal(t, 2, first[0].EvidenceCount)
	assert.Equal(t, []string{"Exports slow", "slow exports"}, first[0].Labels)
}

func TestRepresentativeTieBreaksLexically(t *testing.T) {
	themes := Cluster([]types.EvidenceFacet{
		mkFacet("zebra exports", uuid.New(), 1, 0),
		mkFacet("Apple exports", uuid.New(), 1, 0.01),
		mkFacet("apple exports", uuid.New(), 1, 0.02),
	}, "pain", 0.82)
	require.Len(t, themes, 1)
	assert.Equal(t, "Apple exports", themes[0].RepresentativeLabel)
}

func TestThemeIDsAreStableAndUnique(t *testing.T) {
	facets := []types.EvidenceFacet{
		mkFacet("slow exports", uuid.New(), 1, 0),
		mkFacet("slow exports", uuid.New(), -1, 0),
	}
	themes := Cluster(facets, "pain", 0.82)
	require.Len(t, themes, 2)
	assert.NotEqual(t, themes[0].ID, themes[1].ID)

	again := Cluster(facets, "pain", 0.82)
	assert.Equal(t, themes[0].ID, again[0].ID)
}

type stubSource struct{ facets []types.EvidenceFacet }

func (s stubSource) ListEmbedded(ctx context.Context, projectID uuid.UUID, kindSlug string) ([]types.EvidenceFacet, error) {
	return s.facets, nil
}

func TestEngineUsesDefaultThreshold(t *testing.T) {
	src := stubSource{facets: []types.EvidenceFacet{
		mkFacet("a", uuid.New(), 1, 0),
		mkFacet("b", uuid.New(), 0.85, 0.527),
	}}
	themes, err := NewEngine(src, 0, logger.Discard()).ClusterFacets(context.Background(), uuid.New(), "pain", 0)
	require.NoError(t, err)
	assert.Len(t, themes, 1)

	themes, err = NewEngine(src, 0, logger.Discard()).ClusterFacets(context.Background(), uuid.New(), "pain", 0.9)
	require.NoError(t, err)
	assert.Len(t, themes, 2)
}
