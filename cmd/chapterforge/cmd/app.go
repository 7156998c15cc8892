package cmd

import (
	"log/slog"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/database"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/engine/stages"
	"github.com/mlcook/chapterforge/internal/ingest"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/media"
	"github.com/mlcook/chapterforge/internal/repository"
	"github.com/mlcook/chapterforge/internal/transcription"
)

// app holds the wired components every command works with. Construction
// order: config, logger, database, repositories, clients, engine.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.DB

	recordings repository.RecordingRepository
	jobs       repository.JobRepository
	stageRepo  repository.StageRepository

	layout      *artifacts.Layout
	downloader  *media.Downloader
	coordinator *transcription.Coordinator
	engine      *engine.Engine
	ingest      *ingest.Service
}

// newApp wires the full application from configuration. Callers must Close.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	recordings := repository.NewRecordingRepository(db.DB)
	jobs := repository.NewJobRepository(db.DB)
	stageRepo := repository.NewStageRepository(db.DB)

	layout := artifacts.NewLayout(cfg.Storage.JobsPath())

	gemini := llm.NewGeminiClient(cfg.LLM.Gemini, cfg.LLM.RetryAttempts, cfg.LLM.RetryDelay, logger)
	ollama := llm.NewOllamaClient(cfg.LLM.Ollama, cfg.LLM.RetryAttempts, cfg.LLM.RetryDelay, logger)

	downloader := media.NewDownloader(cfg.Media, logger)
	trimmer := media.NewTrimmer(cfg.Media, logger)

	worker := transcription.NewWorkerClient(cfg.Whisper, logger)
	coordinator := transcription.NewCoordinator(worker, jobs, stageRepo, layout, logger)

	executors := stages.Build(stages.Deps{
		Downloader:  downloader,
		Trimmer:     trimmer,
		Coordinator: coordinator,
		Cloud:       gemini,
		Local:       ollama,
		Pipeline:    cfg.Pipeline,
	})

	eng := engine.New(jobs, stageRepo, layout, executors, "", logger)
	ingestSvc := ingest.New(db.DB, downloader, layout, cfg.Pipeline.MaxAttempts, logger)

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		recordings:  recordings,
		jobs:        jobs,
		stageRepo:   stageRepo,
		layout:      layout,
		downloader:  downloader,
		coordinator: coordinator,
		engine:      eng,
		ingest:      ingestSvc,
	}, nil
}

// Close releases the application's resources.
func (a *app) Close() error {
	return a.db.Close()
}
