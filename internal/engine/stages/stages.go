// Package stages holds one executor per pipeline stage. Each executor does
// its work inside the job directory and reports an output path (or a
// detached/blocked result) back to the engine, which owns all state
// transitions.
package stages

import (
	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/media"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/transcription"
)

// Deps carries everything the stage executors need.
type Deps struct {
	Downloader  *media.Downloader
	Trimmer     *media.Trimmer
	Coordinator *transcription.Coordinator

	// Cloud is the primary (metered) endpoint: metadata, final polish.
	Cloud llm.Client
	// Local is the local endpoint: paragraph breaks, edits, evaluations.
	Local llm.Client

	Pipeline config.PipelineConfig
}

// Build returns the executor set keyed by catalog stage name.
func Build(deps Deps) map[string]engine.Executor {
	return map[string]engine.Executor{
		models.StageDownloadAudio:      &DownloadAudio{downloader: deps.Downloader},
		models.StageExtractSegment:     &ExtractSegment{trimmer: deps.Trimmer},
		models.StageTranscribe:         &Transcribe{coordinator: deps.Coordinator},
		models.StageFormatParagraphs:   &FormatParagraphs{client: deps.Local, pipeline: deps.Pipeline},
		models.StageExtractMetadata:    &ExtractMetadata{client: deps.Cloud},
		models.StageEditParagraphs:     &EditParagraphs{client: deps.Local},
		models.StageEvaluateParagraphs: &EvaluateParagraphs{client: deps.Local, pipeline: deps.Pipeline},
		models.StageBuildChapter:       &BuildChapter{primary: deps.Cloud, fallback: deps.Local},
	}
}
