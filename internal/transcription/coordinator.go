package transcription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/repository"
)

// Coordinator drives the transcribe stage: it deploys audio to the worker,
// polls running jobs, and retrieves finished transcripts. The stage spends
// most of its life in running while the worker operates; the poll loop is
// what eventually commits it.
type Coordinator struct {
	worker *WorkerClient
	jobs   repository.JobRepository
	stages repository.StageRepository
	layout *artifacts.Layout
	logger *slog.Logger
}

// NewCoordinator wires a coordinator over the worker client and repositories.
func NewCoordinator(worker *WorkerClient, jobs repository.JobRepository, stages repository.StageRepository, layout *artifacts.Layout, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		worker: worker,
		jobs:   jobs,
		stages: stages,
		layout: layout,
		logger: logger,
	}
}

// Deploy uploads the job's audio segment to the worker. The caller has
// already claimed the transcribe stage into running; on worker acceptance the
// stage stays running until a poll observes completion.
//
// Before uploading, the worker is asked whether it already knows this ULID.
// A reclaimed stage (process died after a successful deploy) must not upload
// again: if the worker reports the job completed the transcript is retrieved
// right away, and if it is still working the stage is simply left running.
func (c *Coordinator) Deploy(ctx context.Context, job *models.Job, stage *models.Stage, audioPath string) error {
	switch status, err := c.worker.Status(ctx, job.ID.String()); {
	case err == nil && status == StatusCompleted:
		c.logger.Info("worker already finished this job, retrieving",
			slog.String("job_id", job.ID.String()))
		return c.retrieve(ctx, job.ID, stage)
	case err == nil && (status == StatusRunning || status == StatusDeployed):
		c.logger.Info("worker already holds this job, skipping upload",
			slog.String("job_id", job.ID.String()),
			slog.String("status", status))
		return nil
	}

	return c.worker.Deploy(ctx, audioPath, job.ID.String())
}

// PollResult summarizes one poll round.
type PollResult struct {
	Checked   int
	Completed int
	Failed    int
}

// PollAll checks every job whose transcribe stage is running. Per-job
// failures are logged and do not stop the round.
func (c *Coordinator) PollAll(ctx context.Context) (PollResult, error) {
	var result PollResult

	jobIDs, err := c.stages.JobsWithStageInState(ctx, models.StageTranscribe, models.StageRunning)
	if err != nil {
		return result, fmt.Errorf("listing running transcriptions: %w", err)
	}

	for _, jobID := range jobIDs {
		result.Checked++
		outcome, err := c.PollOne(ctx, jobID)
		if err != nil {
			c.logger.Warn("transcription poll failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()))
			continue
		}
		switch outcome {
		case StatusCompleted:
			result.Completed++
		case StatusFailed:
			result.Failed++
		}
	}
	return result, nil
}

// PollOne checks one running transcription and commits the stage when the
// worker is done. The returned string is the worker-reported status.
func (c *Coordinator) PollOne(ctx context.Context, jobID models.ULID) (string, error) {
	stage, err := c.stages.Get(ctx, jobID, models.StageTranscribe)
	if err != nil {
		return "", err
	}
	if stage == nil || stage.State != models.StageRunning {
		return "", fmt.Errorf("job %s has no running transcribe stage", jobID)
	}

	status, err := c.worker.Status(ctx, jobID.String())
	if err != nil {
		// Transport trouble: leave the stage running, the next round
		// will check again.
		return "", err
	}

	switch status {
	case StatusCompleted:
		if err := c.retrieve(ctx, jobID, stage); err != nil {
			stage.MarkFailed(err)
			if uerr := c.stages.Update(ctx, stage); uerr != nil {
				return "", uerr
			}
			return StatusFailed, nil
		}
		return StatusCompleted, nil

	case StatusFailed:
		stage.MarkFailed(fmt.Errorf("worker reported transcription failed"))
		if err := c.stages.Update(ctx, stage); err != nil {
			return "", err
		}
		c.logger.Warn("transcription failed on worker", slog.String("job_id", jobID.String()))
		return StatusFailed, nil

	default:
		c.logger.Debug("transcription still in progress",
			slog.String("job_id", jobID.String()),
			slog.String("status", status))
		return status, nil
	}
}

// retrieve pulls the transcript and commits the stage to success. Server-side
// state is never deleted, so a failure here can be retried on the next poll.
func (c *Coordinator) retrieve(ctx context.Context, jobID models.ULID, stage *models.Stage) error {
	transcript, err := c.worker.Retrieve(ctx, jobID.String())
	if err != nil {
		return err
	}
	if transcript == "" {
		return fmt.Errorf("worker returned an empty transcript")
	}

	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}

	path := c.layout.WhisperTranscript(job)
	if err := artifacts.WriteFileAtomic(path, []byte(transcript), 0o644); err != nil {
		return err
	}

	stage.MarkSuccess(path)
	if err := c.stages.Update(ctx, stage); err != nil {
		return err
	}

	c.logger.Info("transcript retrieved",
		slog.String("job_id", jobID.String()),
		slog.Int("transcript_bytes", len(transcript)))
	return nil
}
