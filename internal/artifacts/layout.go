// Package artifacts defines the deterministic per-job directory layout and
// the canonical filenames each stage writes.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlcook/chapterforge/internal/models"
)

// Canonical basenames inside a job directory. Executors write only these
// names and never outside their own job directory.
const (
	AudioSegmentFile        = "audio_segment.mp3"
	WhisperTranscriptFile   = "whisper_transcript.txt"
	FormattedTranscriptFile = "formatted_transcript.txt"
	MetadataFile            = "metadata.json"
	ParagraphsFile          = "paragraphs.json"
	FinishedDocumentFile    = "finished_document.txt"

	// audioFullPrefix is the basename (sans extension) of the untrimmed
	// download, removed once the segment has been extracted.
	audioFullPrefix = "audio_full"
)

// Layout resolves artifact paths for jobs under a fixed root.
type Layout struct {
	jobsRoot string
}

// NewLayout creates a Layout rooted at the given jobs directory
// (typically <base_dir>/jobs).
func NewLayout(jobsRoot string) *Layout {
	return &Layout{jobsRoot: jobsRoot}
}

// JobDir returns the directory owned by the job: <root>/jobs/<ulid>_<seq>.
func (l *Layout) JobDir(job *models.Job) string {
	return filepath.Join(l.jobsRoot, job.DirName())
}

// EnsureJobDir creates the job directory if needed and returns its path.
func (l *Layout) EnsureJobDir(job *models.Job) (string, error) {
	dir := l.JobDir(job)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating job directory: %w", err)
	}
	return dir, nil
}

// AudioFull returns the path of the untrimmed download for the given
// container extension (e.g. "m4a").
func (l *Layout) AudioFull(job *models.Job, ext string) string {
	return filepath.Join(l.JobDir(job), audioFullPrefix+"."+ext)
}

// AudioFullBase returns the untrimmed download path without its extension;
// the downloader appends the container extension it produced.
func (l *Layout) AudioFullBase(job *models.Job) string {
	return filepath.Join(l.JobDir(job), audioFullPrefix)
}

// AudioSegment returns the path of the trimmed audio segment.
func (l *Layout) AudioSegment(job *models.Job) string {
	return filepath.Join(l.JobDir(job), AudioSegmentFile)
}

// WhisperTranscript returns the path of the raw transcript.
func (l *Layout) WhisperTranscript(job *models.Job) string {
	return filepath.Join(l.JobDir(job), WhisperTranscriptFile)
}

// FormattedTranscript returns the path of the paragraph-formatted transcript.
func (l *Layout) FormattedTranscript(job *models.Job) string {
	return filepath.Join(l.JobDir(job), FormattedTranscriptFile)
}

// Metadata returns the path of metadata.json.
func (l *Layout) Metadata(job *models.Job) string {
	return filepath.Join(l.JobDir(job), MetadataFile)
}

// Paragraphs returns the path of paragraphs.json.
func (l *Layout) Paragraphs(job *models.Job) string {
	return filepath.Join(l.JobDir(job), ParagraphsFile)
}

// FinishedDocument returns the path of the assembled chapter document.
func (l *Layout) FinishedDocument(job *models.Job) string {
	return filepath.Join(l.JobDir(job), FinishedDocumentFile)
}
