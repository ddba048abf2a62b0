package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"interview-insights-go/internal/dataset"
	"interview-insights-go/internal/pipeline"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var accountFlag, projectFlag, instructions string

	cmd := &cobra.Command{
		Use:   "import <manifest.xlsx>",
		Short: "Queue every recording in an xlsx manifest for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseUUIDFlag("account", accountFlag, false)
			if err != nil {
				return err
			}
			projectID, err := parseUUIDFlag("project", projectFlag, false)
			if err != nil {
				return err
			}

			rows, skipped, err := dataset.LoadManifest(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			var out [][]string
			failed := 0
			for _, row := range rows {
				in := pipeline.IntakeInput{
					AccountID:    pick(row.AccountID, accountID),
					ProjectID:    pick(row.ProjectID, projectID),
					Title:        row.Title,
					MediaURL:     row.MediaURL,
					Instructions: row.Instructions,
				}
				if in.Instructions == "" {
					in.Instructions = instructions
				}
				iv, h, err := a.Pipeline.Intake(cmd.Context(), in)
				if err != nil {
					failed++
					out = append(out, []string{strconv.Itoa(row.Row), truncateCell(row.Title, 40), "-", "error: " + err.Error()})
					continue
				}
				out = append(out, []string{strconv.Itoa(row.Row), truncateCell(row.Title, 40), iv.ID.String(), h.ID.String()})
			}
			for _, s := range skipped {
				out = append(out, []string{strconv.Itoa(s.Row), "", "-", "skipped: " + s.Reason})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Row", "Title", "Interview", "Job"}, out, []columnAlignment{alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d, failed %d, skipped %d\n", len(rows)-failed, failed, len(skipped))
			if failed > 0 {
				return fmt.Errorf("%d rows failed to queue", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&accountFlag, "account", "", "Default account id for rows without one")
	cmd.Flags().StringVar(&projectFlag, "project", "", "Default project id for rows without one")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Extraction instructions for rows without notes")
	return cmd
}

func pick(id, fallback uuid.UUID) uuid.UUID {
	if id != uuid.Nil {
		return id
	}
	return fallback
}
