package models

import "gorm.io/gorm"

// Recording holds metadata about a source media item. One Recording exists per
// distinct source identifier; it is never mutated after creation apart from an
// explicit metadata refresh.
type Recording struct {
	BaseModel

	// SourceID is the provider-assigned video identifier (e.g. the YouTube ID).
	SourceID string `gorm:"not null;uniqueIndex;size:64" json:"source_id"`

	// Title is the video title as reported by the provider.
	Title string `gorm:"size:512" json:"title"`

	// Uploader is the channel or account that published the video.
	Uploader string `gorm:"size:255" json:"uploader,omitempty"`

	// DurationSeconds is the total length of the source media.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// UploadDate is the date the video was published.
	UploadDate *Time `json:"upload_date,omitempty"`

	// URL is the canonical watch URL.
	URL string `gorm:"not null;size:1024" json:"url"`

	// Description is the provider description text.
	Description string `gorm:"size:8192" json:"description,omitempty"`
}

// TableName returns the table name for Recording.
func (Recording) TableName() string {
	return "recordings"
}

// Validate performs basic validation on the recording.
func (r *Recording) Validate() error {
	if r.SourceID == "" {
		return ErrSourceIDRequired
	}
	if r.URL == "" {
		return ErrURLRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the recording and generates a ULID.
func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return r.Validate()
}
