package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"interview-insights-go/internal/people"
)

func newPeopleCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Inspect and merge people",
	}
	cmd.AddCommand(newPeopleMergeCommand(ctx))
	cmd.AddCommand(newPeopleDedupeCommand(ctx))
	return cmd
}

func newPeopleMergeCommand(ctx *commandContext) *cobra.Command {
	var accountFlag, projectFlag, sourceFlag, targetFlag, reason, actor string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a duplicate person into a target person",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseUUIDFlag("account", accountFlag, true)
			if err != nil {
				return err
			}
			projectID, err := parseUUIDFlag("project", projectFlag, false)
			if err != nil {
				return err
			}
			sourceID, err := parseUUIDFlag("source", sourceFlag, true)
			if err != nil {
				return err
			}
			targetID, err := parseUUIDFlag("target", targetFlag, true)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if actor == "" {
				actor = os.Getenv("USER")
			}

			res, err := a.Merger.Merge(cmd.Context(), people.MergeInput{
				AccountID: accountID,
				ProjectID: optionalUUID(projectID),
				SourceID:  sourceID,
				TargetID:  targetID,
				Reason:    reason,
				Actor:     actor,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&accountFlag, "account", "", "Account id")
	cmd.Flags().StringVar(&projectFlag, "project", "", "Project id recorded on the merge")
	cmd.Flags().StringVar(&sourceFlag, "source", "", "Person to merge away")
	cmd.Flags().StringVar(&targetFlag, "target", "", "Person to keep")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason stored in the merge record")
	cmd.Flags().StringVar(&actor, "actor", "", "Who performed the merge (default $USER)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report counts without committing")
	return cmd
}

func newPeopleDedupeCommand(ctx *commandContext) *cobra.Command {
	var accountFlag, projectFlag, actor string
	var apply bool

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "List likely duplicate people, optionally merging them",
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseUUIDFlag("account", accountFlag, true)
			if err != nil {
				return err
			}
			projectID, err := parseUUIDFlag("project", projectFlag, false)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			groups, err := a.Deduper.FindDuplicates(cmd.Context(), accountID, optionalUUID(projectID))
			if err != nil {
				return err
			}
			var rows [][]string
			for _, g := range groups {
				for _, p := range g.People {
					rows = append(rows, []string{
						g.Key, p.ID.String(), truncateCell(p.Name, 30),
						strOr(p.PrimaryEmail), strOr(p.Company),
						strconv.Itoa(people.Completeness(p)),
					})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Group", "Person", "Name", "Email", "Company", "Completeness"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			if !apply {
				fmt.Fprintf(cmd.OutOrStdout(), "%d duplicate groups; rerun with --apply to merge\n", len(groups))
				return nil
			}

			if actor == "" {
				actor = os.Getenv("USER")
			}
			rep, err := a.Deduper.AutoMerge(cmd.Context(), accountID, optionalUUID(projectID), actor, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "groups %d, merged %d, errors %d\n", rep.GroupsProcessed, rep.PeopleMerged, len(rep.Errors))
			for _, e := range rep.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&accountFlag, "account", "", "Account id")
	cmd.Flags().StringVar(&projectFlag, "project", "", "Limit to one project")
	cmd.Flags().StringVar(&actor, "actor", "", "Who performed the merge (default $USER)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Merge each group into its most complete member")
	return cmd
}

func strOr(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
