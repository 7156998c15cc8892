package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mlcook/chapterforge/internal/models"
)

// recordingRepo implements RecordingRepository using GORM.
type recordingRepo struct {
	db *gorm.DB
}

// NewRecordingRepository creates a new RecordingRepository.
func NewRecordingRepository(db *gorm.DB) *recordingRepo {
	return &recordingRepo{db: db}
}

// Create creates a new recording.
func (r *recordingRepo) Create(ctx context.Context, recording *models.Recording) error {
	if err := r.db.WithContext(ctx).Create(recording).Error; err != nil {
		return fmt.Errorf("creating recording: %w", err)
	}
	return nil
}

// GetByID retrieves a recording by ID.
func (r *recordingRepo) GetByID(ctx context.Context, id models.ULID) (*models.Recording, error) {
	var recording models.Recording
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&recording).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting recording by ID: %w", err)
	}
	return &recording, nil
}

// GetBySourceID retrieves a recording by its provider-assigned identifier.
func (r *recordingRepo) GetBySourceID(ctx context.Context, sourceID string) (*models.Recording, error) {
	var recording models.Recording
	if err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).First(&recording).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting recording by source ID: %w", err)
	}
	return &recording, nil
}

// Update updates an existing recording (metadata refresh only).
func (r *recordingRepo) Update(ctx context.Context, recording *models.Recording) error {
	if err := r.db.WithContext(ctx).Save(recording).Error; err != nil {
		return fmt.Errorf("updating recording: %w", err)
	}
	return nil
}

// Ensure recordingRepo implements RecordingRepository at compile time.
var _ RecordingRepository = (*recordingRepo)(nil)
