package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mlcook/chapterforge/internal/engine"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the automatic pipeline stages on a schedule",
	Long: `Keep the automatic stages moving without operator involvement: on
every tick, poll the transcription worker for finished transcripts and
advance every eligible job through the stages that retry on their own
(download, segment extraction, transcription hand-off).

The language-model stages are not scheduled here; they are run
explicitly with "advance" so a human controls when model budget is
spent. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := app.engine.ReclaimAbandoned(ctx); err != nil {
			return err
		}

		scheduler := cron.New()
		_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", watchInterval), func() {
			tick(ctx, app)
		})
		if err != nil {
			return fmt.Errorf("scheduling watch loop: %w", err)
		}

		app.logger.Info("watch loop started", slog.Duration("interval", watchInterval))
		scheduler.Start()
		<-ctx.Done()

		// Let an in-flight tick finish before returning.
		<-scheduler.Stop().Done()
		app.logger.Info("watch loop stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "time between pipeline ticks")
	rootCmd.AddCommand(watchCmd)
}

// tick is one pass of the watch loop: poll the worker, then advance the
// auto-retry stages in pipeline order.
func tick(ctx context.Context, app *app) {
	if ctx.Err() != nil {
		return
	}

	if result, err := app.coordinator.PollAll(ctx); err != nil {
		app.logger.Warn("worker poll failed", slog.String("error", err.Error()))
	} else if result.Completed > 0 || result.Failed > 0 {
		app.logger.Info("worker poll",
			slog.Int("checked", result.Checked),
			slog.Int("completed", result.Completed),
			slog.Int("failed", result.Failed))
	}

	for _, def := range engine.Catalog {
		if !def.AutoRetry {
			continue
		}
		outcomes, err := app.engine.AdvanceAll(ctx, def.Name)
		if err != nil {
			app.logger.Warn("advance failed",
				slog.String("stage", def.Name),
				slog.String("error", err.Error()))
			continue
		}
		for _, o := range outcomes {
			if o.Err != nil {
				app.logger.Warn("stage attempt failed",
					slog.String("job_id", o.JobID.String()),
					slog.String("stage", o.Stage),
					slog.String("error", o.Err.Error()))
			}
		}
	}
}
