package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/media"
)

// DownloadAudio fetches the recording's audio track into the job directory.
type DownloadAudio struct {
	downloader *media.Downloader
}

// Run downloads the full audio as audio_full.<ext>. The file is trimmed and
// removed by extract_segment.
func (s *DownloadAudio) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	if task.Job.Recording == nil || task.Job.Recording.URL == "" {
		return engine.Result{}, fmt.Errorf("job %s has no recording URL", task.Job.ID)
	}

	if _, err := task.Layout.EnsureJobDir(task.Job); err != nil {
		return engine.Result{}, err
	}

	events := media.Events{
		OnProgress: func(percent float64) {
			task.Logger.Debug("download progress", slog.Float64("percent", percent))
		},
		OnFinished: func(path string) {
			task.Logger.Info("download finished", slog.String("path", path))
		},
	}

	path, err := s.downloader.DownloadAudio(ctx, task.Job.Recording.URL, task.Layout.AudioFullBase(task.Job), events)
	if err != nil {
		return engine.Result{}, err
	}
	return engine.Result{OutputPath: path}, nil
}

// ExtractSegment trims the downloaded audio to the job's time window and
// removes the full download to bound disk use.
type ExtractSegment struct {
	trimmer *media.Trimmer
}

// Run trims [StartSeconds, EndSeconds) of the full audio into
// audio_segment.mp3. EndSeconds of zero means until end of audio.
func (s *ExtractSegment) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	output := task.Layout.AudioSegment(task.Job)

	err := s.trimmer.Trim(ctx, task.PrevOutput, output, task.Job.StartSeconds, task.Job.EndSeconds)
	if err != nil {
		return engine.Result{}, err
	}

	if err := os.Remove(task.PrevOutput); err != nil {
		task.Logger.Warn("could not remove full audio",
			slog.String("path", task.PrevOutput),
			slog.String("error", err.Error()))
	}

	return engine.Result{OutputPath: output}, nil
}
