package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mlcook/chapterforge/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Recording{}, &models.Job{}, &models.Stage{})
	require.NoError(t, err)

	return db
}

func createTestJob(t *testing.T, db *gorm.DB) *models.Job {
	rec := &models.Recording{SourceID: models.NewULID().String(), URL: "https://example/v/AAAAAAAAAAA"}
	require.NoError(t, db.Create(rec).Error)

	job := &models.Job{RecordingID: rec.ID, StartSeconds: 60, EndSeconds: 120}
	require.NoError(t, db.Create(job).Error)
	return job
}

func TestStageRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStageRepository(db)
	ctx := context.Background()
	job := createTestJob(t, db)

	stage := &models.Stage{JobID: job.ID, Name: "download_audio", State: models.StagePending}
	require.NoError(t, repo.Create(ctx, stage))
	assert.False(t, stage.ID.IsZero())

	found, err := repo.Get(ctx, job.ID, "download_audio")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.StagePending, found.State)

	missing, err := repo.Get(ctx, job.ID, "transcribe")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStageRepo_Claim(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStageRepository(db)
	ctx := context.Background()
	job := createTestJob(t, db)
	now := time.Now()

	stage := &models.Stage{JobID: job.ID, Name: "transcribe", State: models.StagePending}
	require.NoError(t, repo.Create(ctx, stage))

	t.Run("claims pending stage", func(t *testing.T) {
		claimed, err := repo.Claim(ctx, job.ID, "transcribe", "proc-1", now)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, models.StageRunning, claimed.State)
		assert.Equal(t, 1, claimed.AttemptCount)
		assert.Equal(t, "proc-1", claimed.ClaimedBy)
	})

	t.Run("second claim loses", func(t *testing.T) {
		claimed, err := repo.Claim(ctx, job.ID, "transcribe", "proc-2", now)
		require.NoError(t, err)
		assert.Nil(t, claimed)
	})
}

func TestStageRepo_Claim_RespectsBackoff(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStageRepository(db)
	ctx := context.Background()
	job := createTestJob(t, db)
	now := time.Now()
	future := now.Add(10 * time.Minute)

	stage := &models.Stage{
		JobID:          job.ID,
		Name:           "transcribe",
		State:          models.StageFailed,
		AttemptCount:   2,
		NextEligibleAt: &future,
	}
	require.NoError(t, repo.Create(ctx, stage))

	claimed, err := repo.Claim(ctx, job.ID, "transcribe", "proc-1", now)
	require.NoError(t, err)
	assert.Nil(t, claimed, "backoff window must be respected")

	claimed, err = repo.Claim(ctx, job.ID, "transcribe", "proc-1", future.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, 3, claimed.AttemptCount, "retry bumps attempt count")
}

func TestStageRepo_Claim_SuccessIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStageRepository(db)
	ctx := context.Background()
	job := createTestJob(t, db)

	stage := &models.Stage{JobID: job.ID, Name: "build_chapter", State: models.StageSuccess}
	require.NoError(t, repo.Create(ctx, stage))

	claimed, err := repo.Claim(ctx, job.ID, "build_chapter", "proc-1", time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestStageRepo_JobsWithStageInState(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStageRepository(db)
	ctx := context.Background()

	jobA := createTestJob(t, db)
	jobB := createTestJob(t, db)
	jobC := createTestJob(t, db)

	require.NoError(t, repo.Create(ctx, &models.Stage{JobID: jobA.ID, Name: "transcribe", State: models.StagePending}))
	require.NoError(t, repo.Create(ctx, &models.Stage{JobID: jobB.ID, Name: "transcribe", State: models.StageFailed}))
	require.NoError(t, repo.Create(ctx, &models.Stage{JobID: jobC.ID, Name: "transcribe", State: models.StageSuccess}))

	ids, err := repo.JobsWithStageInState(ctx, "transcribe", models.StagePending, models.StageFailed)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	// Ordered by job sequence.
	assert.Equal(t, jobA.ID, ids[0])
	assert.Equal(t, jobB.ID, ids[1])
}

func TestStageRepo_ReclaimAbandoned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStageRepository(db)
	ctx := context.Background()
	job := createTestJob(t, db)

	running := &models.Stage{JobID: job.ID, Name: "transcribe", State: models.StageRunning, AttemptCount: 2, ClaimedBy: "dead-proc"}
	require.NoError(t, repo.Create(ctx, running))
	done := &models.Stage{JobID: job.ID, Name: "extract_segment", State: models.StageSuccess}
	require.NoError(t, repo.Create(ctx, done))

	n, err := repo.ReclaimAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reclaimed, err := repo.Get(ctx, job.ID, "transcribe")
	require.NoError(t, err)
	assert.Equal(t, models.StagePending, reclaimed.State)
	assert.Equal(t, models.AbandonedError, reclaimed.LastError)
	assert.Equal(t, 2, reclaimed.AttemptCount, "attempt count preserved")
	assert.Empty(t, reclaimed.ClaimedBy)

	untouched, err := repo.Get(ctx, job.ID, "extract_segment")
	require.NoError(t, err)
	assert.Equal(t, models.StageSuccess, untouched.State)
}
