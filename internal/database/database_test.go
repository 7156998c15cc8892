package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/models"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}
}

func TestNew_MigratesSchema(t *testing.T) {
	db, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(context.Background()))

	for _, table := range []string{"recordings", "jobs", "stages"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestDB_TransactionRollback(t *testing.T) {
	db, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")

	err = db.Transaction(ctx, func(tx *gorm.DB) error {
		rec := &models.Recording{SourceID: "abc123", URL: "https://example/v/abc123"}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.DB.Model(&models.Recording{}).Count(&count).Error)
	assert.Zero(t, count, "rolled back writes must be discarded")
}

func TestStages_UniquePerJobAndName(t *testing.T) {
	db, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer db.Close()

	rec := &models.Recording{SourceID: "abc123", URL: "https://example/v/abc123"}
	require.NoError(t, db.Create(rec).Error)
	job := &models.Job{RecordingID: rec.ID, StartSeconds: 0, EndSeconds: 60}
	require.NoError(t, db.Create(job).Error)

	require.NoError(t, db.Create(&models.Stage{JobID: job.ID, Name: "transcribe"}).Error)
	err = db.Create(&models.Stage{JobID: job.ID, Name: "transcribe"}).Error
	assert.Error(t, err, "(job, stage_name) must be unique")
}
