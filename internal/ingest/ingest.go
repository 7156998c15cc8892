// Package ingest creates the durable records for a new processing job: the
// recording (deduplicated by source ID), the job row, its directory, and one
// pending stage row per catalog entry.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/media"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/repository"
)

// Prober fetches source metadata for a URL without downloading media.
type Prober interface {
	Probe(ctx context.Context, url string) (*media.SourceInfo, error)
}

// Service materializes jobs. Stage rows are created inside one transaction
// with the job, so a crash can never leave a job with a partial stage set.
type Service struct {
	db          *gorm.DB
	prober      Prober
	layout      *artifacts.Layout
	maxAttempts int
	logger      *slog.Logger
}

// New creates an ingest service. maxAttempts caps automatic retries for
// auto-retry stages; user-triggered stages carry no cap.
func New(db *gorm.DB, prober Prober, layout *artifacts.Layout, maxAttempts int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		db:          db,
		prober:      prober,
		layout:      layout,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Ingest creates a job for the URL over the [startSeconds, endSeconds)
// window. The recording is reused when the source was seen before. Every
// stage row starts pending.
func (s *Service) Ingest(ctx context.Context, url string, startSeconds, endSeconds float64) (*models.Job, error) {
	info, err := s.prober.Probe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("probing source: %w", err)
	}

	var job *models.Job
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recordings := repository.NewRecordingRepository(tx)
		jobs := repository.NewJobRepository(tx)
		stages := repository.NewStageRepository(tx)

		recording, err := recordings.GetBySourceID(ctx, info.ID)
		if err != nil {
			return err
		}
		if recording == nil {
			recording = recordingFromSource(info)
			if err := recordings.Create(ctx, recording); err != nil {
				return err
			}
			s.logger.Info("recording created",
				slog.String("source_id", recording.SourceID),
				slog.String("title", recording.Title))
		}

		job = &models.Job{
			RecordingID:  recording.ID,
			StartSeconds: startSeconds,
			EndSeconds:   endSeconds,
		}
		if err := jobs.Create(ctx, job); err != nil {
			return err
		}

		for _, def := range engine.Catalog {
			maxAttempts := 0
			if def.AutoRetry {
				maxAttempts = s.maxAttempts
			}
			stage := &models.Stage{
				JobID:       job.ID,
				Name:        def.Name,
				State:       models.StagePending,
				MaxAttempts: maxAttempts,
			}
			if err := stages.Create(ctx, stage); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	if _, err := s.layout.EnsureJobDir(job); err != nil {
		return nil, err
	}

	s.logger.Info("job ingested",
		slog.String("job_id", job.ID.String()),
		slog.String("dir", job.DirName()),
		slog.Float64("start_seconds", startSeconds),
		slog.Float64("end_seconds", endSeconds))
	return job, nil
}

func recordingFromSource(info *media.SourceInfo) *models.Recording {
	rec := &models.Recording{
		SourceID:        info.ID,
		Title:           info.Title,
		Uploader:        info.Uploader,
		DurationSeconds: info.Duration,
		URL:             info.WebpageURL,
		Description:     info.Description,
	}
	if t := info.UploadedAt(); t != nil {
		uploaded := models.Time(*t)
		rec.UploadDate = &uploaded
	}
	return rec
}
