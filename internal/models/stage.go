package models

import (
	"time"

	"gorm.io/gorm"
)

// StageState represents the durable execution state of one stage of one job.
type StageState string

const (
	// StagePending indicates the stage is waiting to be executed.
	StagePending StageState = "pending"
	// StageRunning indicates the stage is currently executing (or has been
	// deployed to the remote worker).
	StageRunning StageState = "running"
	// StageBlocked indicates the stage is waiting on external confirmation
	// before it can complete (e.g. human review of regenerated paragraphs).
	StageBlocked StageState = "blocked"
	// StageSuccess indicates the stage completed and recorded its output.
	StageSuccess StageState = "success"
	// StageFailed indicates the last attempt failed; the stage may be retried.
	StageFailed StageState = "failed"
)

// AbandonedError is the last_error value stamped on stages reclaimed from a
// dead process.
const AbandonedError = "abandoned"

// Stage catalog names, in pipeline order. The set is closed; adding a stage
// is a code change.
const (
	StageDownloadAudio      = "download_audio"
	StageExtractSegment     = "extract_segment"
	StageTranscribe         = "transcribe"
	StageFormatParagraphs   = "format_paragraphs"
	StageExtractMetadata    = "extract_metadata"
	StageEditParagraphs     = "edit_paragraphs"
	StageEvaluateParagraphs = "evaluate_paragraphs"
	StageBuildChapter       = "build_chapter"
)

// backoffSchedule maps attempt count to the delay before the next attempt.
// Capped at the last value.
var backoffSchedule = []time.Duration{
	0,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	time.Hour,
}

// NextBackoff returns the delay before a stage that has failed attemptCount
// times becomes eligible again.
func NextBackoff(attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	if attemptCount >= len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	return backoffSchedule[attemptCount]
}

// Stage is the execution record of one named phase of one job. The pair
// (JobID, Name) is unique.
type Stage struct {
	BaseModel

	// JobID references the owning job.
	JobID ULID `gorm:"not null;type:varchar(26);uniqueIndex:idx_stages_job_name;index" json:"job_id"`

	// Name is the catalog name of this phase (e.g. "transcribe").
	Name string `gorm:"not null;size:50;uniqueIndex:idx_stages_job_name" json:"name"`

	// State is the current execution state.
	State StageState `gorm:"not null;default:'pending';size:20;index" json:"state"`

	// AttemptCount is incremented on each transition out of pending/failed
	// into running.
	AttemptCount int `gorm:"default:0" json:"attempt_count"`

	// MaxAttempts caps automatic retries. Zero means user-triggered only.
	MaxAttempts int `gorm:"default:0" json:"max_attempts"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `gorm:"size:4096" json:"last_error,omitempty"`

	// StartedAt is stamped when the stage is claimed.
	StartedAt *Time `json:"started_at,omitempty"`

	// FinishedAt is stamped on success or failure.
	FinishedAt *Time `json:"finished_at,omitempty"`

	// NextEligibleAt is the earliest time a retry may start (backoff).
	NextEligibleAt *Time `gorm:"index" json:"next_eligible_at,omitempty"`

	// OutputPath names the artifact this stage produced, inside the job
	// directory. Empty until success (the evaluator updates in place and
	// re-records the paragraphs file path).
	OutputPath string `gorm:"size:1024" json:"output_path,omitempty"`

	// ClaimedBy identifies the process that holds the running claim.
	ClaimedBy string `gorm:"size:100;index" json:"claimed_by,omitempty"`
}

// TableName returns the table name for Stage.
func (Stage) TableName() string {
	return "stages"
}

// IsClaimable returns true when the stage may transition to running.
func (s *Stage) IsClaimable(now time.Time) bool {
	if s.State != StagePending && s.State != StageFailed {
		return false
	}
	if s.NextEligibleAt != nil && now.Before(*s.NextEligibleAt) {
		return false
	}
	return true
}

// IsTerminalFailure returns true when automatic retries are exhausted.
func (s *Stage) IsTerminalFailure() bool {
	return s.State == StageFailed && s.MaxAttempts > 0 && s.AttemptCount >= s.MaxAttempts
}

// MarkRunning transitions the stage into running under the given claimant,
// bumping the attempt count and stamping started_at.
func (s *Stage) MarkRunning(claimant string) {
	now := Now()
	s.State = StageRunning
	s.StartedAt = &now
	s.FinishedAt = nil
	s.ClaimedBy = claimant
	s.AttemptCount++
	s.LastError = ""
}

// MarkSuccess transitions the stage into success with the given output path.
func (s *Stage) MarkSuccess(outputPath string) {
	now := Now()
	s.State = StageSuccess
	s.FinishedAt = &now
	s.OutputPath = outputPath
	s.LastError = ""
	s.NextEligibleAt = nil
	s.ClaimedBy = ""
}

// MarkBlocked transitions the stage into blocked, recording why.
func (s *Stage) MarkBlocked(reason string) {
	now := Now()
	s.State = StageBlocked
	s.FinishedAt = &now
	s.LastError = reason
	s.ClaimedBy = ""
}

// MarkFailed transitions the stage into failed, recording the error and
// setting next_eligible_at per the backoff schedule.
func (s *Stage) MarkFailed(err error) {
	now := Now()
	s.State = StageFailed
	s.FinishedAt = &now
	if err != nil {
		s.LastError = err.Error()
	}
	eligible := now.Add(NextBackoff(s.AttemptCount))
	s.NextEligibleAt = &eligible
	s.ClaimedBy = ""
}

// MarkAbandoned reclaims a running stage left behind by a dead process.
// Attempt count is preserved.
func (s *Stage) MarkAbandoned() {
	s.State = StagePending
	s.LastError = AbandonedError
	s.StartedAt = nil
	s.FinishedAt = nil
	s.ClaimedBy = ""
}

// Validate performs basic validation on the stage.
func (s *Stage) Validate() error {
	if s.Name == "" {
		return ErrStageNameRequired
	}
	if s.JobID.IsZero() {
		return ErrJobIDRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the stage and generates a ULID.
func (s *Stage) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return s.Validate()
}
