package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/aggregator"
)

func TestGenerateTopCells(t *testing.T) {
	m := aggregator.PainMatrix{
		Groups: []aggregator.Group{{Key: "segment:smb", Name: "smb"}},
		Cells: []aggregator.Cell{
			{ThemeLabel: "slow exports", GroupKey: "segment:smb", Frequency: 0.75, PersonCount: 3, Intensity: "critical", ImpactScore: 2.4},
			{ThemeLabel: "billing confusion", GroupKey: "segment:smb", Frequency: 0.5, PersonCount: 2, Intensity: "medium", ImpactScore: 0.66},
			{ThemeLabel: "sso", GroupKey: "segment:smb", Frequency: 0.25, PersonCount: 1, Intensity: "low", ImpactScore: 0.1},
		},
	}
	cards := Generate(m, 2)
	require.Len(t, cards, 2)
	assert.Contains(t, cards[0].Insight, `"slow exports" affects 75% of smb`)
	assert.Contains(t, cards[0].Action, "Prioritize")
	assert.Contains(t, cards[0].Impact, "High")
	assert.Contains(t, cards[1].Action, "follow-up")
	assert.Contains(t, cards[1].Impact, "Medium")
}

func TestGenerateEmptyMatrix(t *testing.T) {
	cards := Generate(aggregator.PainMatrix{}, 3)
	require.Len(t, cards, 1)
	assert.Contains(t, cards[0].Insight, "No recurring pain")
}
