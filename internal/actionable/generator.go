// Package actionable turns a pain matrix into short action cards.
package actionable

import (
	"fmt"

	"interview-insights-go/internal/aggregator"
)

type ActionCard struct {
	Insight string  `json:"insight"`
	Action  string  `json:"action"`
	Impact  string  `json:"impact"`
	Score   float64 `json:"score"`
}

// Generate returns a card for each of the top n cells by impact. With no
// cells it returns a single monitoring card.
func Generate(m aggregator.PainMatrix, n int) []ActionCard {
	if n <= 0 {
		n = 3
	}
	names := map[string]string{}
	for _, g := range m.Groups {
		names[g.Key] = g.Name
	}

	var cards []ActionCard
	for _, c := range m.Cells {
		if len(cards) == n {
			break
		}
		group := names[c.GroupKey]
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%q affects %.0f%% of %s (%d people, %s intensity)",
				c.ThemeLabel, c.Frequency*100, group, c.PersonCount, orDash(c.Intensity)),
			Action: action(c),
			Impact: impact(c),
			Score:  c.ImpactScore,
		})
	}
	if len(cards) == 0 {
		return []ActionCard{{
			Insight: "No recurring pain pattern detected",
			Action:  "Run more interviews and regenerate evidence",
			Impact:  "Low immediate intervention",
		}}
	}
	return cards
}

func action(c aggregator.Cell) string {
	switch c.Intensity {
	case "critical", "high":
		return fmt.Sprintf("Prioritize a fix for %q and validate it with the affected people", c.ThemeLabel)
	case "medium":
		return fmt.Sprintf("Schedule follow-up interviews to size %q", c.ThemeLabel)
	default:
		return fmt.Sprintf("Track %q in upcoming interviews", c.ThemeLabel)
	}
}

func impact(c aggregator.Cell) string {
	if c.ImpactScore >= aggregator.HighImpactThreshold {
		return "High: several people report this with strong intensity"
	}
	if c.Frequency >= 0.5 {
		return "Medium: common within the group"
	}
	return "Low: isolated reports so far"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
