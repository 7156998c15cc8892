package stages

import (
	"context"

	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/transcription"
)

// Transcribe hands the audio segment to the remote whisper worker. The stage
// then lives in running until a poll round observes the worker finishing;
// the coordinator owns that commit.
type Transcribe struct {
	coordinator *transcription.Coordinator
}

// Run deploys the audio under the job's ULID. The coordinator skips the
// upload when the worker already holds this ULID (a reclaimed stage), and
// commits the stage directly when the worker already finished it.
func (s *Transcribe) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	if err := s.coordinator.Deploy(ctx, task.Job, task.Stage, task.PrevOutput); err != nil {
		return engine.Result{}, err
	}

	// Detached either way: the stage is still running on the worker, or the
	// coordinator already committed it to success during deploy.
	return engine.Result{Detached: true}, nil
}
