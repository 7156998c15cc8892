package models

import "errors"

// Validation errors returned from model hooks.
var (
	// ErrSourceIDRequired indicates a recording is missing its provider ID.
	ErrSourceIDRequired = errors.New("recording source_id is required")

	// ErrURLRequired indicates a recording is missing its canonical URL.
	ErrURLRequired = errors.New("recording url is required")

	// ErrRecordingIDRequired indicates a job is not linked to a recording.
	ErrRecordingIDRequired = errors.New("job recording_id is required")

	// ErrNegativeWindow indicates a job window starting before zero.
	ErrNegativeWindow = errors.New("job start_seconds must not be negative")

	// ErrEmptyWindow indicates a job window of zero or negative length.
	ErrEmptyWindow = errors.New("job end_seconds must be zero or greater than start_seconds")

	// ErrStageNameRequired indicates a stage record without a catalog name.
	ErrStageNameRequired = errors.New("stage name is required")

	// ErrJobIDRequired indicates a stage record not linked to a job.
	ErrJobIDRequired = errors.New("stage job_id is required")
)
