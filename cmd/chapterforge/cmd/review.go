package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/paragraphs"
)

var (
	reviewAccept []int
	reviewReject []int
)

var reviewCmd = &cobra.Command{
	Use:   "review <job-id>",
	Short: "Review regenerated paragraphs and unblock evaluation",
	Long: `When the evaluator rewrites a low-rated paragraph, the evaluation
stage blocks until a human has looked at the replacement. Without flags,
this command shows every paragraph awaiting review, with the critique
that triggered the rewrite.

--accept marks a paragraph's replacement as final; --reject sends it
back through evaluation. Once no paragraph is left awaiting review the
stage is unblocked: success when everything passed, otherwise pending
for another evaluation round.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		jobID, err := models.ParseULID(args[0])
		if err != nil {
			return fmt.Errorf("invalid job ID %q: %w", args[0], err)
		}
		job, err := app.jobs.GetWithRecording(ctx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job %s not found", args[0])
		}

		stage, err := app.stageRepo.Get(ctx, jobID, models.StageEvaluateParagraphs)
		if err != nil {
			return err
		}
		if stage == nil || stage.State != models.StageBlocked {
			return fmt.Errorf("job %s has no evaluation awaiting review", args[0])
		}

		path := app.layout.Paragraphs(job)
		records, err := paragraphs.Load(path)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no paragraphs found at %s", path)
		}

		if len(reviewAccept) == 0 && len(reviewReject) == 0 {
			showPendingReview(records)
			return nil
		}

		if err := applyReview(records, reviewAccept, paragraphs.StatusPassed); err != nil {
			return err
		}
		if err := applyReview(records, reviewReject, paragraphs.StatusFailed); err != nil {
			return err
		}
		if err := paragraphs.Save(path, records); err != nil {
			return err
		}

		remaining := countStatus(records, paragraphs.StatusRegenerated)
		if remaining > 0 {
			fmt.Printf("%d paragraph(s) still awaiting review\n", remaining)
			return nil
		}

		// Review complete: release the stage.
		if paragraphs.AllPassed(records) {
			stage.MarkSuccess(path)
			fmt.Println("all paragraphs passed; evaluation marked success")
		} else {
			stage.State = models.StagePending
			stage.LastError = ""
			stage.NextEligibleAt = nil
			stage.ClaimedBy = ""
			fmt.Println("rejected paragraphs returned for another evaluation round")
		}
		return app.stageRepo.Update(ctx, stage)
	},
}

func init() {
	reviewCmd.Flags().IntSliceVar(&reviewAccept, "accept", nil, "paragraph indexes whose replacement is approved")
	reviewCmd.Flags().IntSliceVar(&reviewReject, "reject", nil, "paragraph indexes to send back through evaluation")
	rootCmd.AddCommand(reviewCmd)
}

func showPendingReview(records []paragraphs.Record) {
	shown := 0
	for i := range records {
		rec := &records[i]
		if rec.EvaluationStatus != paragraphs.StatusRegenerated {
			continue
		}
		shown++
		fmt.Printf("--- paragraph %d", rec.Index)
		if rec.Rating != nil {
			fmt.Printf(" (rated %d)", *rec.Rating)
		}
		fmt.Println(" ---")
		if rec.Critique != nil {
			fmt.Printf("critique: %s\n", *rec.Critique)
		}
		fmt.Printf("\noriginal:\n%s\n", rec.Original)
		if rec.Edited != nil {
			fmt.Printf("\nreplacement:\n%s\n", *rec.Edited)
		}
		fmt.Println()
	}
	if shown == 0 {
		fmt.Println("no paragraphs awaiting review")
	} else {
		fmt.Printf("%d paragraph(s) awaiting review; re-run with --accept/--reject\n", shown)
	}
}

// applyReview flips the listed regenerated paragraphs to the given status.
// Indexes that are unknown or not awaiting review are an error, so a typo
// cannot silently approve the wrong paragraph.
func applyReview(records []paragraphs.Record, indexes []int, status paragraphs.EvaluationStatus) error {
	byIndex := make(map[int]*paragraphs.Record, len(records))
	for i := range records {
		byIndex[records[i].Index] = &records[i]
	}
	for _, idx := range indexes {
		rec, ok := byIndex[idx]
		if !ok {
			return fmt.Errorf("no paragraph with index %d", idx)
		}
		if rec.EvaluationStatus != paragraphs.StatusRegenerated {
			return fmt.Errorf("paragraph %d is not awaiting review (status %s)", idx, rec.EvaluationStatus)
		}
		rec.EvaluationStatus = status
	}
	return nil
}

func countStatus(records []paragraphs.Record, status paragraphs.EvaluationStatus) int {
	n := 0
	for i := range records {
		if records[i].EvaluationStatus == status {
			n++
		}
	}
	return n
}
