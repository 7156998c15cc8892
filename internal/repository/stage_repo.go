package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mlcook/chapterforge/internal/models"
)

// stageRepo implements StageRepository using GORM.
type stageRepo struct {
	db *gorm.DB
}

// NewStageRepository creates a new StageRepository.
func NewStageRepository(db *gorm.DB) *stageRepo {
	return &stageRepo{db: db}
}

// Create creates a new stage record.
func (r *stageRepo) Create(ctx context.Context, stage *models.Stage) error {
	if err := r.db.WithContext(ctx).Create(stage).Error; err != nil {
		return fmt.Errorf("creating stage: %w", err)
	}
	return nil
}

// Get retrieves the named stage of a job.
func (r *stageRepo) Get(ctx context.Context, jobID models.ULID, name string) (*models.Stage, error) {
	var stage models.Stage
	if err := r.db.WithContext(ctx).Where("job_id = ? AND name = ?", jobID, name).First(&stage).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stage: %w", err)
	}
	return &stage, nil
}

// ListForJob retrieves all stages of a job.
func (r *stageRepo) ListForJob(ctx context.Context, jobID models.ULID) ([]*models.Stage, error) {
	var stages []*models.Stage
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at ASC").Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("listing stages for job: %w", err)
	}
	return stages, nil
}

// Update updates an existing stage record.
func (r *stageRepo) Update(ctx context.Context, stage *models.Stage) error {
	if err := r.db.WithContext(ctx).Save(stage).Error; err != nil {
		return fmt.Errorf("updating stage: %w", err)
	}
	return nil
}

// JobsWithStageInState returns the IDs of jobs whose named stage is in one of
// the given states, ordered by job sequence number.
func (r *stageRepo) JobsWithStageInState(ctx context.Context, name string, states ...models.StageState) ([]models.ULID, error) {
	var ids []models.ULID
	err := r.db.WithContext(ctx).
		Model(&models.Stage{}).
		Joins("JOIN jobs ON jobs.id = stages.job_id").
		Where("stages.name = ? AND stages.state IN ?", name, states).
		Order("jobs.seq ASC").
		Pluck("stages.job_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("querying jobs with stage %s: %w", name, err)
	}
	return ids, nil
}

// Claim atomically transitions the named stage from pending/failed to running.
// The guard is a single conditional UPDATE so two processes cannot both win;
// RowsAffected tells us whether this caller took the claim.
func (r *stageRepo) Claim(ctx context.Context, jobID models.ULID, name, claimant string, now time.Time) (*models.Stage, error) {
	started := now
	result := r.db.WithContext(ctx).
		Model(&models.Stage{}).
		Where("job_id = ? AND name = ?", jobID, name).
		Where("state IN ?", []models.StageState{models.StagePending, models.StageFailed}).
		Where("next_eligible_at IS NULL OR next_eligible_at <= ?", now).
		UpdateColumns(map[string]interface{}{
			"state":         models.StageRunning,
			"claimed_by":    claimant,
			"started_at":    started,
			"finished_at":   nil,
			"last_error":    "",
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("claiming stage %s: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return r.Get(ctx, jobID, name)
}

// ReclaimAbandoned returns every running stage to pending. Attempt counts are
// preserved; last_error records the reclaim. Called once on process startup,
// before any dispatching, so stages orphaned by a crash become eligible again.
func (r *stageRepo) ReclaimAbandoned(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Stage{}).
		Where("state = ?", models.StageRunning).
		UpdateColumns(map[string]interface{}{
			"state":       models.StagePending,
			"last_error":  models.AbandonedError,
			"claimed_by":  "",
			"started_at":  nil,
			"finished_at": nil,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("reclaiming abandoned stages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure stageRepo implements StageRepository at compile time.
var _ StageRepository = (*stageRepo)(nil)
