package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlcook/chapterforge/internal/models"
)

func testJob() *models.Job {
	return &models.Job{BaseModel: models.BaseModel{ID: models.NewULID()}, Seq: 7}
}

func TestLayout_Paths(t *testing.T) {
	layout := NewLayout("/data/jobs")
	job := testJob()
	dir := filepath.Join("/data/jobs", job.ID.String()+"_7")

	assert.Equal(t, dir, layout.JobDir(job))
	assert.Equal(t, filepath.Join(dir, "audio_full.m4a"), layout.AudioFull(job, "m4a"))
	assert.Equal(t, filepath.Join(dir, "audio_segment.mp3"), layout.AudioSegment(job))
	assert.Equal(t, filepath.Join(dir, "whisper_transcript.txt"), layout.WhisperTranscript(job))
	assert.Equal(t, filepath.Join(dir, "formatted_transcript.txt"), layout.FormattedTranscript(job))
	assert.Equal(t, filepath.Join(dir, "metadata.json"), layout.Metadata(job))
	assert.Equal(t, filepath.Join(dir, "paragraphs.json"), layout.Paragraphs(job))
	assert.Equal(t, filepath.Join(dir, "finished_document.txt"), layout.FinishedDocument(job))
}

func TestLayout_EnsureJobDir(t *testing.T) {
	layout := NewLayout(t.TempDir())
	job := testJob()

	dir, err := layout.EnsureJobDir(job)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent.
	again, err := layout.EnsureJobDir(job)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paragraphs.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`[]`), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))

	// Overwrite replaces, never appends.
	require.NoError(t, WriteFileAtomic(path, []byte(`[{"index":0}]`), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"index":0}]`, string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))

	assert.False(t, FileNonEmpty(filepath.Join(dir, "missing")))
	assert.False(t, FileNonEmpty(empty))
	assert.True(t, FileNonEmpty(full))
}
