package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/mlcook/chapterforge/internal/config"
)

// Trimmer cuts an audio file to a [start, end) window with millisecond
// precision, transcoding to mp3 for the transcription worker.
type Trimmer struct {
	binary string
	logger *slog.Logger
}

// NewTrimmer creates a trimmer from the media config.
func NewTrimmer(cfg config.MediaConfig, logger *slog.Logger) *Trimmer {
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Trimmer{binary: binary, logger: logger}
}

// Trim writes the [startSeconds, endSeconds) window of input to output.
// endSeconds == 0 means until end of audio.
func (t *Trimmer) Trim(ctx context.Context, input, output string, startSeconds, endSeconds float64) error {
	if endSeconds != 0 && endSeconds <= startSeconds {
		return fmt.Errorf("empty trim window [%v, %v)", startSeconds, endSeconds)
	}

	args := buildTrimArgs(input, output, startSeconds, endSeconds)
	cmd := exec.CommandContext(ctx, t.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("trimming %s: %w: %s", input, err, truncateOutput(string(out)))
	}

	if fi, err := os.Stat(output); err != nil || fi.Size() == 0 {
		return fmt.Errorf("trim reported success but %s is missing or empty", output)
	}

	t.logger.Debug("audio trimmed",
		slog.String("input", input),
		slog.String("output", output),
		slog.Float64("start_seconds", startSeconds),
		slog.Float64("end_seconds", endSeconds))
	return nil
}

// buildTrimArgs assembles the ffmpeg invocation. -to is omitted for an
// open-ended window.
func buildTrimArgs(input, output string, startSeconds, endSeconds float64) []string {
	args := []string{
		"-y",
		"-i", input,
		"-ss", formatSeconds(startSeconds),
	}
	if endSeconds > 0 {
		args = append(args, "-to", formatSeconds(endSeconds))
	}
	args = append(args,
		"-vn",
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		output,
	)
	return args
}

// formatSeconds renders seconds with millisecond precision, as ffmpeg
// expects.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
