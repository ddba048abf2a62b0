package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"interview-insights-go/internal/embedding"
	"interview-insights-go/internal/pipeline"
	"interview-insights-go/internal/types"
)

func newBackfillCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string
	var kinds []string
	var queue bool

	cmd := &cobra.Command{
		Use:   "backfill-embeddings",
		Short: "Embed every facet of a project that has no embedding yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseUUIDFlag("project", projectFlag, true)
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if queue {
				h, err := a.Queue.Submit(cmd.Context(), types.JobBackfillEmbeddings, types.BackfillPayload{
					ProjectID: projectID.String(),
					KindSlugs: kinds,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued job %s\n", h.ID)
				return nil
			}

			rep, err := a.Embeddings.Backfill(cmd.Context(), embedding.BackfillInput{ProjectID: projectID, KindSlugs: kinds})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total %d, succeeded %d, failed %d\n", rep.Total, rep.Succeeded, rep.Failed)
			for _, e := range rep.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectFlag, "project", "", "Project id")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "Facet kinds to embed (default: configured kinds)")
	cmd.Flags().BoolVar(&queue, "queue", false, "Submit a job instead of running inline")
	return cmd
}

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var resumeFrom, instructions string
	var skip []string
	var inline bool

	cmd := &cobra.Command{
		Use:   "regenerate <interview-id>",
		Short: "Rerun the pipeline for an interview from a given step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interviewID, err := parseUUIDFlag("interview-id", args[0], true)
			if err != nil {
				return err
			}
			if resumeFrom != "" && !validStep(resumeFrom) {
				return fmt.Errorf("--from must be one of %s", strings.Join(types.Steps, ", "))
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			in := pipeline.RegenerateInput{ResumeFrom: resumeFrom, SkipSteps: skip, Instructions: instructions}
			if !inline {
				h, err := a.Pipeline.Regenerate(cmd.Context(), interviewID, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued job %s\n", h.ID)
				return nil
			}

			iv, err := a.Store.Interviews().Get(cmd.Context(), interviewID)
			if err != nil {
				return err
			}
			if in.ResumeFrom == "" {
				in.ResumeFrom = types.StepEvidence
			}
			if in.ResumeFrom != types.StepUpload && len(in.SkipSteps) == 0 {
				in.SkipSteps = []string{types.StepUpload}
			}
			res, err := a.Orchestrator.Run(cmd.Context(), types.OrchestratePayload{
				InterviewID:  iv.ID.String(),
				AccountID:    iv.AccountID.String(),
				ProjectID:    iv.ProjectID.String(),
				MediaURL:     iv.MediaURL,
				Instructions: in.Instructions,
				ResumeFrom:   in.ResumeFrom,
				SkipSteps:    in.SkipSteps,
			}, &pipeline.MemoryState{})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&resumeFrom, "from", "", "Step to resume from (default evidence)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "Steps to skip")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Extra extraction instructions")
	cmd.Flags().BoolVar(&inline, "inline", false, "Run in this process instead of queueing a job")
	return cmd
}

func validStep(step string) bool {
	for _, s := range types.Steps {
		if s == step {
			return true
		}
	}
	return false
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if !once {
				return a.Worker.Run(cmd.Context())
			}
			n := 0
			for {
				ran, err := a.Worker.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				if !ran {
					break
				}
				n++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d jobs\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Drain runnable jobs and exit")
	return cmd
}
