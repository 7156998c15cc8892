package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/repository"
)

// Task is what an executor receives for one claimed stage run.
type Task struct {
	// Job is the owning job, with its Recording preloaded.
	Job *models.Job

	// Stage is the claimed stage row, already in running.
	Stage *models.Stage

	// PrevOutput is the recorded output path of the dependency stage, or ""
	// for the first stage.
	PrevOutput string

	// Layout resolves artifact paths inside the job directory.
	Layout *artifacts.Layout

	// Logger carries job and stage attributes.
	Logger *slog.Logger

	stages repository.StageRepository
}

// OutputOf returns the recorded output path of another success stage of the
// same job. Executors read earlier artifacts only through this, never by
// guessing paths.
func (t *Task) OutputOf(ctx context.Context, stageName string) (string, error) {
	stage, err := t.stages.Get(ctx, t.Job.ID, stageName)
	if err != nil {
		return "", err
	}
	if stage == nil || stage.State != models.StageSuccess {
		return "", fmt.Errorf("stage %s of job %s has not succeeded", stageName, t.Job.ID)
	}
	if stage.OutputPath == "" || !artifacts.FileNonEmpty(stage.OutputPath) {
		return "", fmt.Errorf("stage %s of job %s has no readable output", stageName, t.Job.ID)
	}
	return stage.OutputPath, nil
}

// Result is what an executor hands back on a nil error.
type Result struct {
	// OutputPath is the artifact this run produced; the stage commits to
	// success with it.
	OutputPath string

	// Detached means the work continues remotely and the stage stays in
	// running; a later poll commits it. Used by transcribe.
	Detached bool

	// BlockedReason, when non-empty, parks the stage in blocked awaiting
	// external confirmation (e.g. human review of regenerated paragraphs).
	BlockedReason string
}

// Executor performs the work of one stage for one job.
type Executor interface {
	Run(ctx context.Context, task *Task) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *Task) (Result, error)

// Run implements Executor.
func (f ExecutorFunc) Run(ctx context.Context, task *Task) (Result, error) {
	return f(ctx, task)
}
