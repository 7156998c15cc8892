package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/repository"
)

// Engine selects eligible work and drives stage executors. Multiple engine
// processes may run against one store; the atomic stage claim keeps any
// (job, stage) pair single-runner.
type Engine struct {
	jobs      repository.JobRepository
	stages    repository.StageRepository
	layout    *artifacts.Layout
	executors map[string]Executor
	logger    *slog.Logger
	claimant  string
}

// New wires an engine. The executors map is keyed by catalog stage name;
// claimant identifies this process in stage claims (defaults to host-pid).
func New(jobs repository.JobRepository, stages repository.StageRepository, layout *artifacts.Layout, executors map[string]Executor, claimant string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if claimant == "" {
		host, _ := os.Hostname()
		claimant = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Engine{
		jobs:      jobs,
		stages:    stages,
		layout:    layout,
		executors: executors,
		logger:    logger,
		claimant:  claimant,
	}
}

// Outcome reports what one AdvanceOne call did.
type Outcome struct {
	JobID   models.ULID
	Stage   string
	State   models.StageState
	Skipped bool
	Reason  string
	Err     error
}

// ReclaimAbandoned returns stages left running by a dead process to pending.
// Called once at startup, before any dispatching.
func (e *Engine) ReclaimAbandoned(ctx context.Context) (int64, error) {
	n, err := e.stages.ReclaimAbandoned(ctx)
	if err != nil {
		return 0, fmt.Errorf("reclaiming abandoned stages: %w", err)
	}
	if n > 0 {
		e.logger.Info("reclaimed abandoned stages", slog.Int64("count", n))
	}
	return n, nil
}

// ListEligible returns the IDs of jobs whose named stage can run now: the
// predecessor is success, this stage is pending or failed, its backoff window
// has passed, and automatic retries are not exhausted. Ordered by job
// sequence.
func (e *Engine) ListEligible(ctx context.Context, stageName string) ([]models.ULID, error) {
	def, ok := Def(stageName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}

	candidates, err := e.stages.JobsWithStageInState(ctx, stageName, models.StagePending, models.StageFailed)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var eligible []models.ULID
	for _, jobID := range candidates {
		ok, err := e.isEligible(ctx, jobID, def, now)
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, jobID)
		}
	}
	return eligible, nil
}

func (e *Engine) isEligible(ctx context.Context, jobID models.ULID, def StageDef, now time.Time) (bool, error) {
	stage, err := e.stages.Get(ctx, jobID, def.Name)
	if err != nil {
		return false, err
	}
	if stage == nil || !stage.IsClaimable(now) || stage.IsTerminalFailure() {
		return false, nil
	}
	if def.DependsOn == "" {
		return true, nil
	}

	prev, err := e.stages.Get(ctx, jobID, def.DependsOn)
	if err != nil {
		return false, err
	}
	return prev != nil && prev.State == models.StageSuccess, nil
}

// AdvanceOne runs one executor call for (job, stage): check preconditions,
// claim, work, commit. Ineligible or already-done stages are a no-op.
func (e *Engine) AdvanceOne(ctx context.Context, jobID models.ULID, stageName string) Outcome {
	outcome := Outcome{JobID: jobID, Stage: stageName}

	def, ok := Def(stageName)
	if !ok {
		outcome.Err = fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
		return outcome
	}
	executor, ok := e.executors[stageName]
	if !ok {
		outcome.Err = fmt.Errorf("%w: no executor registered for %s", ErrUnknownStage, stageName)
		return outcome
	}

	job, err := e.jobs.GetWithRecording(ctx, jobID)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if job == nil {
		outcome.Err = fmt.Errorf("job %s not found", jobID)
		return outcome
	}

	stage, err := e.stages.Get(ctx, jobID, stageName)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if stage == nil {
		outcome.Err = fmt.Errorf("job %s has no %s stage row", jobID, stageName)
		return outcome
	}

	outcome.State = stage.State
	switch stage.State {
	case models.StageSuccess:
		outcome.Skipped, outcome.Reason = true, "already success"
		return outcome
	case models.StageBlocked:
		outcome.Skipped, outcome.Reason = true, "awaiting review"
		return outcome
	}

	prevOutput := ""
	if def.DependsOn != "" {
		prev, err := e.stages.Get(ctx, jobID, def.DependsOn)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		if prev == nil || prev.State != models.StageSuccess {
			outcome.Skipped = true
			outcome.Reason = fmt.Sprintf("waiting on %s", def.DependsOn)
			return outcome
		}
		if prev.OutputPath != "" && !artifacts.FileNonEmpty(prev.OutputPath) {
			outcome.Skipped = true
			outcome.Reason = fmt.Sprintf("%s output missing from disk", def.DependsOn)
			return outcome
		}
		prevOutput = prev.OutputPath
	}

	claimed, err := e.stages.Claim(ctx, jobID, stageName, e.claimant, time.Now())
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if claimed == nil {
		outcome.Skipped, outcome.Reason = true, "not claimable"
		return outcome
	}

	log := e.logger.With(
		slog.String("job_id", jobID.String()),
		slog.String("stage", stageName),
		slog.Int("attempt", claimed.AttemptCount),
	)
	log.Info("stage started")

	task := &Task{
		Job:        job,
		Stage:      claimed,
		PrevOutput: prevOutput,
		Layout:     e.layout,
		Logger:     log,
		stages:     e.stages,
	}

	result, runErr := executor.Run(ctx, task)
	return e.commit(ctx, log, claimed, result, runErr, outcome)
}

// commit records the run's result as a state transition plus last_error.
func (e *Engine) commit(ctx context.Context, log *slog.Logger, stage *models.Stage, result Result, runErr error, outcome Outcome) Outcome {
	switch {
	case runErr != nil:
		stage.MarkFailed(runErr)
		outcome.Err = runErr

	case result.Detached:
		// The remote side is working; a later poll commits this stage.
		outcome.State = stage.State
		log.Info("stage handed off to remote worker")
		return outcome

	case result.BlockedReason != "":
		stage.MarkBlocked(result.BlockedReason)

	case result.OutputPath == "" || !artifacts.FileNonEmpty(result.OutputPath):
		runErr = fmt.Errorf("stage produced no output at %q", result.OutputPath)
		stage.MarkFailed(runErr)
		outcome.Err = runErr

	default:
		stage.MarkSuccess(result.OutputPath)
	}

	if err := e.stages.Update(ctx, stage); err != nil {
		outcome.Err = fmt.Errorf("recording stage result: %w", err)
		return outcome
	}

	outcome.State = stage.State
	switch stage.State {
	case models.StageSuccess:
		log.Info("stage succeeded", slog.String("output", stage.OutputPath))
	case models.StageBlocked:
		log.Warn("stage blocked", slog.String("reason", stage.LastError))
	default:
		log.Warn("stage failed", slog.String("error", stage.LastError))
	}
	return outcome
}

// AdvanceAll runs every eligible job through the named stage. A quota-
// exhausted failure stops the batch at once; any other failure moves on to
// the next job.
func (e *Engine) AdvanceAll(ctx context.Context, stageName string) ([]Outcome, error) {
	eligible, err := e.ListEligible(ctx, stageName)
	if err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, jobID := range eligible {
		outcome := e.AdvanceOne(ctx, jobID, stageName)
		outcomes = append(outcomes, outcome)

		if IsQuota(outcome.Err) {
			e.logger.Warn("quota exhausted, halting batch",
				slog.String("stage", stageName),
				slog.String("job_id", jobID.String()),
				slog.Int("remaining", len(eligible)-len(outcomes)))
			break
		}
	}
	return outcomes, nil
}
