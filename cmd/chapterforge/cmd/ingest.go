package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ingestStart float64
	ingestEnd   float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>",
	Short: "Register a recording URL as a new processing job",
	Long: `Probe the URL for source metadata and create a job covering the
requested time window. The recording is reused when the same source was
ingested before; each window becomes its own job.

All stage rows start pending. Use "advance" to run them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if ingestEnd != 0 && ingestEnd <= ingestStart {
			return fmt.Errorf("--end (%.1f) must be after --start (%.1f)", ingestEnd, ingestStart)
		}

		job, err := app.ingest.Ingest(cmd.Context(), args[0], ingestStart, ingestEnd)
		if err != nil {
			return err
		}

		fmt.Printf("job %s created\n", job.ID)
		fmt.Printf("directory: %s\n", app.layout.JobDir(job))
		return nil
	},
}

func init() {
	ingestCmd.Flags().Float64Var(&ingestStart, "start", 0, "segment start in seconds")
	ingestCmd.Flags().Float64Var(&ingestEnd, "end", 0, "segment end in seconds (0 = end of recording)")
	rootCmd.AddCommand(ingestCmd)
}
