package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/models"
)

var advanceJob string

var advanceCmd = &cobra.Command{
	Use:   "advance <stage>",
	Short: "Run a pipeline stage for eligible jobs",
	Long: `Run the named stage for every eligible job, or for one job with
--job. A job is eligible when the previous stage succeeded, this stage
is pending or failed, and its retry backoff has passed.

Abandoned running stages from a crashed process are reclaimed first.

Stages: ` + strings.Join(engine.StageNames(), ", "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		stageName := args[0]
		if !engine.IsValidStage(stageName) {
			return fmt.Errorf("unknown stage %q (stages: %s)", stageName, strings.Join(engine.StageNames(), ", "))
		}

		if _, err := app.engine.ReclaimAbandoned(ctx); err != nil {
			return err
		}

		var outcomes []engine.Outcome
		if advanceJob != "" {
			jobID, err := models.ParseULID(advanceJob)
			if err != nil {
				return fmt.Errorf("invalid job ID %q: %w", advanceJob, err)
			}
			outcomes = []engine.Outcome{app.engine.AdvanceOne(ctx, jobID, stageName)}
		} else {
			outcomes, err = app.engine.AdvanceAll(ctx, stageName)
			if err != nil {
				return err
			}
		}

		if len(outcomes) == 0 {
			fmt.Printf("no jobs eligible for %s\n", stageName)
			return nil
		}
		printOutcomes(outcomes)
		return nil
	},
}

var eligibleCmd = &cobra.Command{
	Use:   "eligible <stage>",
	Short: "List jobs eligible for a stage without running anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		jobIDs, err := app.engine.ListEligible(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(jobIDs) == 0 {
			fmt.Printf("no jobs eligible for %s\n", args[0])
			return nil
		}
		for _, id := range jobIDs {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	advanceCmd.Flags().StringVar(&advanceJob, "job", "", "advance a single job by ID")
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(eligibleCmd)
}

func printOutcomes(outcomes []engine.Outcome) {
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			fmt.Printf("%s %s: error: %v\n", o.JobID, o.Stage, o.Err)
		case o.Skipped:
			fmt.Printf("%s %s: skipped (%s)\n", o.JobID, o.Stage, o.Reason)
		default:
			fmt.Printf("%s %s: %s\n", o.JobID, o.Stage, o.State)
		}
	}
}
