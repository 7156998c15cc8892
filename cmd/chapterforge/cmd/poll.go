package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Check the transcription worker for finished jobs",
	Long: `Ask the remote transcription worker about every job whose transcribe
stage is still running, retrieve finished transcripts, and record the
results.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.coordinator.PollAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("checked %d, completed %d, failed %d\n",
			result.Checked, result.Completed, result.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}
