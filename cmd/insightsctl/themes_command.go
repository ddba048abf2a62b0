package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"interview-insights-go/internal/actionable"
)

func newThemesCommand(ctx *commandContext) *cobra.Command {
	var projectFlag, kind string
	var threshold float64
	var matrix bool

	cmd := &cobra.Command{
		Use:   "themes",
		Short: "Cluster a project's facets into themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseUUIDFlag("project", projectFlag, true)
			if err != nil {
				return err
			}
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("--threshold must be in (0, 1]")
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if matrix {
				m, err := a.PainMatrix.Build(cmd.Context(), projectID, threshold)
				if err != nil {
					return err
				}
				var rows [][]string
				for _, c := range m.Cells {
					rows = append(rows, []string{
						truncateCell(c.ThemeLabel, 40), c.GroupKey,
						strconv.Itoa(c.PersonCount),
						fmt.Sprintf("%.0f%%", c.Frequency*100),
						c.Intensity,
						fmt.Sprintf("%.2f", c.ImpactScore),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Theme", "Group", "People", "Frequency", "Intensity", "Impact"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
				))
				for _, card := range actionable.Generate(m, a.Config.Clustering.TopActions) {
					fmt.Fprintf(cmd.OutOrStdout(), "- %s\n  %s\n", card.Insight, card.Action)
				}
				return nil
			}

			themes, err := a.Clusters.ClusterFacets(cmd.Context(), projectID, kind, threshold)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, th := range themes {
				rows = append(rows, []string{
					truncateCell(th.RepresentativeLabel, 40),
					strconv.Itoa(th.EvidenceCount),
					strconv.Itoa(len(th.FacetIDs)),
					truncateCell(strings.Join(th.Labels, "; "), 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Theme", "Evidence", "Facets", "Labels"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&projectFlag, "project", "", "Project id")
	cmd.Flags().StringVar(&kind, "kind", "pain", "Facet kind")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Cosine similarity threshold (default: configured)")
	cmd.Flags().BoolVar(&matrix, "pain-matrix", false, "Show the pain by group matrix instead")
	return cmd
}
