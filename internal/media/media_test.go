package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcook/chapterforge/internal/config"
)

func configForTest() config.MediaConfig {
	return config.MediaConfig{
		DownloaderPath: "yt-dlp",
		FFmpegPath:     "ffmpeg",
		AudioFormat:    "m4a",
	}
}

func TestBuildTrimArgs(t *testing.T) {
	t.Run("bounded window carries millisecond precision", func(t *testing.T) {
		args := buildTrimArgs("in.m4a", "out.mp3", 60, 120.5)
		assert.Equal(t, []string{
			"-y",
			"-i", "in.m4a",
			"-ss", "60.000",
			"-to", "120.500",
			"-vn",
			"-codec:a", "libmp3lame",
			"-qscale:a", "2",
			"out.mp3",
		}, args)
	})

	t.Run("open-ended window omits -to", func(t *testing.T) {
		args := buildTrimArgs("in.m4a", "out.mp3", 0, 0)
		assert.NotContains(t, args, "-to")
		assert.Contains(t, args, "-ss")
	})
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.000", formatSeconds(0))
	assert.Equal(t, "90.125", formatSeconds(90.125))
	assert.Equal(t, "3600.001", formatSeconds(3600.0009))
}

func TestBuildDownloadArgs(t *testing.T) {
	args := buildDownloadArgs("https://example/v/abc", "m4a", "/data/jobs/x/audio_full.m4a")
	assert.Equal(t, []string{
		"--extract-audio",
		"--audio-format", "m4a",
		"--newline",
		"--no-playlist",
		"--output", "/data/jobs/x/audio_full.m4a",
		"https://example/v/abc",
	}, args)
}

func TestProgressRE(t *testing.T) {
	m := progressRE.FindStringSubmatch("[download]  42.7% of 10.00MiB at 1.00MiB/s")
	require.NotNil(t, m)
	assert.Equal(t, "42.7", m[1])

	assert.Nil(t, progressRE.FindStringSubmatch("[ExtractAudio] Destination: out.m4a"))
}

func TestSourceInfoUploadedAt(t *testing.T) {
	info := SourceInfo{UploadDate: "20240317"}
	got := info.UploadedAt()
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, time.March, 17, 0, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, (&SourceInfo{UploadDate: ""}).UploadedAt())
	assert.Nil(t, (&SourceInfo{UploadDate: "17-03-2024"}).UploadedAt())
}

func TestEvents_NilCallbacksAreSafe(t *testing.T) {
	var e Events
	e.progress(50)
	e.finished("x")
	e.failed(assert.AnError)
}

func TestTrim_EmptyWindowRejected(t *testing.T) {
	tr := NewTrimmer(configForTest(), nil)
	err := tr.Trim(t.Context(), "in.m4a", "out.mp3", 120, 60)
	require.Error(t, err)
}
