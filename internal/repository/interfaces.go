// Package repository provides data access layers for chapterforge models.
package repository

import (
	"context"
	"time"

	"github.com/mlcook/chapterforge/internal/models"
)

// RecordingRepository manages source recording records.
type RecordingRepository interface {
	Create(ctx context.Context, recording *models.Recording) error
	GetByID(ctx context.Context, id models.ULID) (*models.Recording, error)
	GetBySourceID(ctx context.Context, sourceID string) (*models.Recording, error)
	Update(ctx context.Context, recording *models.Recording) error
}

// JobRepository manages processing job records.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id models.ULID) (*models.Job, error)
	GetWithRecording(ctx context.Context, id models.ULID) (*models.Job, error)
	GetAll(ctx context.Context) ([]*models.Job, error)
}

// StageRepository manages per-job stage execution records.
type StageRepository interface {
	Create(ctx context.Context, stage *models.Stage) error
	Get(ctx context.Context, jobID models.ULID, name string) (*models.Stage, error)
	ListForJob(ctx context.Context, jobID models.ULID) ([]*models.Stage, error)
	Update(ctx context.Context, stage *models.Stage) error

	// JobsWithStageInState returns the IDs of jobs whose named stage is in one
	// of the given states, ordered by job sequence number.
	JobsWithStageInState(ctx context.Context, name string, states ...models.StageState) ([]models.ULID, error)

	// Claim atomically transitions the named stage of the job from
	// pending/failed to running, provided its backoff window has passed.
	// Returns nil when the stage is not claimable.
	Claim(ctx context.Context, jobID models.ULID, name, claimant string, now time.Time) (*models.Stage, error)

	// ReclaimAbandoned returns every running stage to pending, preserving
	// attempt counts and stamping last_error. Called on process startup.
	ReclaimAbandoned(ctx context.Context) (int64, error)
}
