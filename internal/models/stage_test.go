package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, 30 * time.Second},
		{2, 2 * time.Minute},
		{3, 10 * time.Minute},
		{4, time.Hour},
		{5, time.Hour},
		{100, time.Hour},
		{-1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextBackoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestStage_MarkRunning(t *testing.T) {
	s := &Stage{State: StagePending, LastError: "previous"}

	s.MarkRunning("worker-1")

	assert.Equal(t, StageRunning, s.State)
	assert.Equal(t, 1, s.AttemptCount)
	assert.Equal(t, "worker-1", s.ClaimedBy)
	assert.Empty(t, s.LastError)
	require.NotNil(t, s.StartedAt)
	assert.Nil(t, s.FinishedAt)
}

func TestStage_MarkSuccess(t *testing.T) {
	s := &Stage{State: StageRunning, ClaimedBy: "worker-1"}
	s.MarkRunning("worker-1")

	s.MarkSuccess("/data/jobs/x_1/audio_segment.mp3")

	assert.Equal(t, StageSuccess, s.State)
	assert.Equal(t, "/data/jobs/x_1/audio_segment.mp3", s.OutputPath)
	assert.Empty(t, s.ClaimedBy)
	assert.Nil(t, s.NextEligibleAt)
	require.NotNil(t, s.FinishedAt)
}

func TestStage_MarkFailed(t *testing.T) {
	s := &Stage{State: StagePending}
	s.MarkRunning("worker-1")
	s.MarkFailed(errors.New("boom"))

	assert.Equal(t, StageFailed, s.State)
	assert.Equal(t, "boom", s.LastError)
	assert.Empty(t, s.ClaimedBy)
	require.NotNil(t, s.NextEligibleAt)
	// One attempt means a 30s backoff.
	assert.WithinDuration(t, time.Now().Add(30*time.Second), *s.NextEligibleAt, 5*time.Second)
}

func TestStage_MarkAbandoned(t *testing.T) {
	s := &Stage{State: StagePending}
	s.MarkRunning("worker-1")
	s.MarkAbandoned()

	assert.Equal(t, StagePending, s.State)
	assert.Equal(t, AbandonedError, s.LastError)
	assert.Equal(t, 1, s.AttemptCount, "attempt count is preserved on reclaim")
	assert.Empty(t, s.ClaimedBy)
}

func TestStage_IsClaimable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		stage Stage
		want  bool
	}{
		{"pending", Stage{State: StagePending}, true},
		{"failed eligible", Stage{State: StageFailed, NextEligibleAt: &past}, true},
		{"failed backing off", Stage{State: StageFailed, NextEligibleAt: &future}, false},
		{"running", Stage{State: StageRunning}, false},
		{"success", Stage{State: StageSuccess}, false},
		{"blocked", Stage{State: StageBlocked}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.IsClaimable(now))
		})
	}
}

func TestStage_IsTerminalFailure(t *testing.T) {
	assert.False(t, (&Stage{State: StageFailed, MaxAttempts: 0, AttemptCount: 10}).IsTerminalFailure(),
		"zero max attempts means user-triggered, never terminal")
	assert.True(t, (&Stage{State: StageFailed, MaxAttempts: 5, AttemptCount: 5}).IsTerminalFailure())
	assert.False(t, (&Stage{State: StageFailed, MaxAttempts: 5, AttemptCount: 4}).IsTerminalFailure())
	assert.False(t, (&Stage{State: StageSuccess, MaxAttempts: 5, AttemptCount: 5}).IsTerminalFailure())
}

func TestJob_DirName(t *testing.T) {
	id := NewULID()
	j := &Job{BaseModel: BaseModel{ID: id}, Seq: 17}
	assert.Equal(t, id.String()+"_17", j.DirName())
}

func TestJob_Validate(t *testing.T) {
	rec := NewULID()

	assert.NoError(t, (&Job{RecordingID: rec, StartSeconds: 60, EndSeconds: 120}).Validate())
	assert.NoError(t, (&Job{RecordingID: rec, StartSeconds: 60, EndSeconds: 0}).Validate(),
		"zero end means until end of audio")
	assert.ErrorIs(t, (&Job{StartSeconds: 0, EndSeconds: 10}).Validate(), ErrRecordingIDRequired)
	assert.ErrorIs(t, (&Job{RecordingID: rec, StartSeconds: -1}).Validate(), ErrNegativeWindow)
	assert.ErrorIs(t, (&Job{RecordingID: rec, StartSeconds: 120, EndSeconds: 60}).Validate(), ErrEmptyWindow)
}

func TestULID_RoundTrip(t *testing.T) {
	id := NewULID()
	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}
