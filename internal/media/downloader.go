package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mlcook/chapterforge/internal/config"
)

// SourceInfo is the subset of the downloader's --dump-json output the
// ingestion flow needs.
type SourceInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	UploadDate  string  `json:"upload_date"` // YYYYMMDD
	WebpageURL  string  `json:"webpage_url"`
	Description string  `json:"description"`
}

// UploadedAt parses the YYYYMMDD upload date. Returns nil when absent or
// malformed.
func (s *SourceInfo) UploadedAt() *time.Time {
	if len(s.UploadDate) != 8 {
		return nil
	}
	t, err := time.Parse("20060102", s.UploadDate)
	if err != nil {
		return nil
	}
	return &t
}

// Downloader runs the external download tool to produce audio files and probe
// source metadata.
type Downloader struct {
	binary      string
	audioFormat string
	logger      *slog.Logger
}

// NewDownloader creates a downloader from the media config.
func NewDownloader(cfg config.MediaConfig, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	binary := cfg.DownloaderPath
	if binary == "" {
		binary = "yt-dlp"
	}
	format := cfg.AudioFormat
	if format == "" {
		format = "m4a"
	}
	return &Downloader{binary: binary, audioFormat: format, logger: logger}
}

// AudioFormat returns the extension audio is downloaded as.
func (d *Downloader) AudioFormat() string {
	return d.audioFormat
}

// Probe fetches source metadata without downloading any media.
func (d *Downloader) Probe(ctx context.Context, url string) (*SourceInfo, error) {
	cmd := exec.CommandContext(ctx, d.binary, "--dump-json", "--skip-download", url)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", url, err)
	}

	var info SourceInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parsing probe output for %s: %w", url, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("probe output for %s carries no source id", url)
	}
	return &info, nil
}

// progressRE matches the tool's "[download]  42.7% ..." status lines.
var progressRE = regexp.MustCompile(`\[download\]\s+([0-9.]+)%`)

// DownloadAudio extracts audio from the URL into destNoExt.<format> and
// returns the final path. Progress lines from the tool are forwarded through
// events.
func (d *Downloader) DownloadAudio(ctx context.Context, url, destNoExt string, events Events) (string, error) {
	dest := destNoExt + "." + d.audioFormat
	args := buildDownloadArgs(url, d.audioFormat, dest)

	cmd := exec.CommandContext(ctx, d.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("attaching to downloader output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		err = fmt.Errorf("starting downloader: %w", err)
		events.failed(err)
		return "", err
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if m := progressRE.FindStringSubmatch(line); m != nil {
			if pct, perr := strconv.ParseFloat(m[1], 64); perr == nil {
				events.progress(pct)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		err = fmt.Errorf("downloading %s: %w: %s", url, err, truncateOutput(stderr.String()))
		events.failed(err)
		return "", err
	}

	if fi, err := os.Stat(dest); err != nil || fi.Size() == 0 {
		err = fmt.Errorf("downloader reported success but %s is missing or empty", dest)
		events.failed(err)
		return "", err
	}

	d.logger.Debug("audio downloaded", slog.String("url", url), slog.String("path", dest))
	events.finished(dest)
	return dest, nil
}

// truncateOutput keeps the tail of tool output, where the actual error lives.
func truncateOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 400 {
		s = "..." + s[len(s)-400:]
	}
	return s
}

// buildDownloadArgs assembles the audio-extraction invocation.
func buildDownloadArgs(url, format, dest string) []string {
	return []string{
		"--extract-audio",
		"--audio-format", format,
		"--newline",
		"--no-playlist",
		"--output", dest,
		url,
	}
}
