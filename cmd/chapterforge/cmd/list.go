package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/models"
)

var listCmd = &cobra.Command{
	Use:   "list [job-id]",
	Short: "Show jobs and their stage progress",
	Long: `Without arguments, list every job with a one-line stage summary.
With a job ID, show that job's stages in pipeline order, including
attempt counts and the last error of any failed or blocked stage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if len(args) == 1 {
			return listOne(cmd, app, args[0])
		}
		return listAll(cmd, app)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listAll(cmd *cobra.Command, app *app) error {
	ctx := cmd.Context()
	jobs, err := app.jobs.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tTITLE\tWINDOW\tPROGRESS")
	for _, job := range jobs {
		rows, err := app.stageRepo.ListForJob(ctx, job.ID)
		if err != nil {
			return err
		}
		sortPipeline(rows)
		title := ""
		if rec, err := app.recordings.GetByID(ctx, job.RecordingID); err == nil && rec != nil {
			title = rec.Title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", job.ID, title, windowLabel(job), progressLabel(rows))
	}
	return w.Flush()
}

func listOne(cmd *cobra.Command, app *app, id string) error {
	ctx := cmd.Context()
	jobID, err := models.ParseULID(id)
	if err != nil {
		return fmt.Errorf("invalid job ID %q: %w", id, err)
	}

	job, err := app.jobs.GetWithRecording(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", id)
	}

	if job.Recording != nil {
		fmt.Printf("%s  %s\n", job.ID, job.Recording.Title)
		fmt.Printf("source: %s\n", job.Recording.URL)
	} else {
		fmt.Println(job.ID)
	}
	fmt.Printf("window: %s\n", windowLabel(job))
	fmt.Printf("directory: %s\n\n", app.layout.JobDir(job))

	rows, err := app.stageRepo.ListForJob(ctx, job.ID)
	if err != nil {
		return err
	}
	sortPipeline(rows)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATE\tATTEMPTS\tDETAIL")
	for _, stage := range rows {
		detail := ""
		switch stage.State {
		case models.StageSuccess:
			detail = stage.OutputPath
		case models.StageRunning:
			detail = "claimed by " + stage.ClaimedBy
		default:
			detail = stage.LastError
			if stage.NextEligibleAt != nil {
				detail = fmt.Sprintf("%s (retry after %s)", detail,
					stage.NextEligibleAt.Format("15:04:05"))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%s\t%s\n",
			stage.Name, stage.State, stage.AttemptCount, attemptCap(stage), detail)
	}
	return w.Flush()
}

func windowLabel(job *models.Job) string {
	if job.WindowOpenEnded() {
		return fmt.Sprintf("%.0fs-end", job.StartSeconds)
	}
	return fmt.Sprintf("%.0fs-%.0fs", job.StartSeconds, job.EndSeconds)
}

func attemptCap(stage *models.Stage) string {
	if stage.MaxAttempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", stage.MaxAttempts)
}

// sortPipeline orders stage rows by their position in the stage catalog.
func sortPipeline(rows []*models.Stage) {
	index := make(map[string]int, len(engine.Catalog))
	for i, def := range engine.Catalog {
		index[def.Name] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return index[rows[i].Name] < index[rows[j].Name]
	})
}

// progressLabel compresses the stage states into one glyph per stage, in
// pipeline order: "." pending, ">" running, "+" success, "!" failed,
// "?" blocked.
func progressLabel(rows []*models.Stage) string {
	glyphs := map[models.StageState]byte{
		models.StagePending: '.',
		models.StageRunning: '>',
		models.StageSuccess: '+',
		models.StageFailed:  '!',
		models.StageBlocked: '?',
	}
	out := make([]byte, 0, len(rows))
	for _, stage := range rows {
		g, ok := glyphs[stage.State]
		if !ok {
			g = ' '
		}
		out = append(out, g)
	}
	return string(out)
}
