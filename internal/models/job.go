package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Job is one processing run of a recording over a time window
// [StartSeconds, EndSeconds). Multiple jobs may reference one recording.
// The job's ULID is the sole correlation key with the remote transcription
// worker and, together with Seq, names the job's artifact directory.
type Job struct {
	BaseModel

	// RecordingID references the source recording.
	RecordingID ULID `gorm:"not null;type:varchar(26);index" json:"recording_id"`

	// Recording is the associated recording (preloaded on demand).
	Recording *Recording `gorm:"foreignKey:RecordingID" json:"recording,omitempty"`

	// Seq is a small monotonically assigned integer used in the job
	// directory name alongside the ULID.
	Seq int64 `gorm:"not null;uniqueIndex;autoIncrement" json:"seq"`

	// StartSeconds is the inclusive start of the processed window.
	StartSeconds float64 `gorm:"not null" json:"start_seconds"`

	// EndSeconds is the exclusive end of the processed window.
	// Zero means "until end of audio".
	EndSeconds float64 `gorm:"not null" json:"end_seconds"`

	// Stages are the per-phase execution records owned by this job.
	Stages []Stage `gorm:"foreignKey:JobID" json:"stages,omitempty"`
}

// TableName returns the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// DirName returns the job directory basename, "<ulid>_<seq>".
func (j *Job) DirName() string {
	return fmt.Sprintf("%s_%d", j.ID.String(), j.Seq)
}

// WindowOpenEnded returns true when the job runs to the end of the audio.
func (j *Job) WindowOpenEnded() bool {
	return j.EndSeconds == 0
}

// Validate performs basic validation on the job.
func (j *Job) Validate() error {
	if j.RecordingID.IsZero() {
		return ErrRecordingIDRequired
	}
	if j.StartSeconds < 0 {
		return ErrNegativeWindow
	}
	if j.EndSeconds != 0 && j.EndSeconds <= j.StartSeconds {
		return ErrEmptyWindow
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the job and generates a ULID.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if err := j.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return j.Validate()
}
