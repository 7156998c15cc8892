package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/repository"
)

// fakeWorker is an in-memory stand-in for the remote transcription service.
type fakeWorker struct {
	mu          sync.Mutex
	statuses    map[string]string // ulid -> status
	transcripts map[string]string // ulid -> transcript
	deploys     []string          // ulids in deploy order
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{
		statuses:    make(map[string]string),
		transcripts: make(map[string]string),
	}
}

func (w *fakeWorker) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /new-job", func(rw http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		ulid := r.FormValue("ulid_")
		require.Len(t, ulid, 26)
		require.NotEmpty(t, r.FormValue("whisper_model"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		file.Close()

		w.mu.Lock()
		w.deploys = append(w.deploys, ulid)
		w.statuses[ulid] = StatusRunning
		w.mu.Unlock()

		json.NewEncoder(rw).Encode(map[string]string{"status": StatusDeployed})
	})

	mux.HandleFunc("GET /report-job-status/{ulid}", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		status, ok := w.statuses[r.PathValue("ulid")]
		w.mu.Unlock()
		if !ok {
			http.NotFound(rw, r)
			return
		}
		json.NewEncoder(rw).Encode(map[string]string{"status": status})
	})

	mux.HandleFunc("GET /retrieve-job/{ulid}", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		transcript, ok := w.transcripts[r.PathValue("ulid")]
		w.mu.Unlock()
		if !ok {
			http.NotFound(rw, r)
			return
		}
		rw.Write([]byte(transcript))
	})

	return mux
}

func (w *fakeWorker) deployCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.deploys)
}

func (w *fakeWorker) finish(ulid, transcript string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statuses[ulid] = StatusCompleted
	w.transcripts[ulid] = transcript
}

type fixture struct {
	worker      *fakeWorker
	client      *WorkerClient
	coordinator *Coordinator
	stages      repository.StageRepository
	layout      *artifacts.Layout
	job         *models.Job
	audioPath   string
}

func setup(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Recording{}, &models.Job{}, &models.Stage{}))

	rec := &models.Recording{SourceID: models.NewULID().String(), URL: "https://example/v/AAAAAAAAAAA"}
	require.NoError(t, db.Create(rec).Error)
	job := &models.Job{RecordingID: rec.ID, StartSeconds: 60, EndSeconds: 120}
	require.NoError(t, db.Create(job).Error)

	worker := newFakeWorker()
	server := httptest.NewServer(worker.handler(t))
	t.Cleanup(server.Close)

	client := NewWorkerClient(config.WhisperConfig{
		BaseURL:       server.URL,
		Model:         "large-v3",
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, nil)

	layout := artifacts.NewLayout(filepath.Join(t.TempDir(), "jobs"))
	_, err = layout.EnsureJobDir(job)
	require.NoError(t, err)

	audioPath := layout.AudioSegment(job)
	require.NoError(t, os.WriteFile(audioPath, []byte("fake mp3 bytes"), 0o644))

	jobs := repository.NewJobRepository(db)
	stages := repository.NewStageRepository(db)

	return &fixture{
		worker:      worker,
		client:      client,
		coordinator: NewCoordinator(client, jobs, stages, layout, nil),
		stages:      stages,
		layout:      layout,
		job:         job,
		audioPath:   audioPath,
	}
}

func (f *fixture) claimTranscribe(t *testing.T) *models.Stage {
	ctx := context.Background()
	require.NoError(t, f.stages.Create(ctx, &models.Stage{JobID: f.job.ID, Name: models.StageTranscribe}))
	stage, err := f.stages.Claim(ctx, f.job.ID, models.StageTranscribe, "test", time.Now())
	require.NoError(t, err)
	require.NotNil(t, stage)
	return stage
}

func TestDeploy_UploadsAndLeavesRunning(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stage := f.claimTranscribe(t)

	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))
	assert.Equal(t, 1, f.worker.deployCount())
	assert.Equal(t, []string{f.job.ID.String()}, f.worker.deploys)

	got, err := f.stages.Get(ctx, f.job.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.StageRunning, got.State)
}

func TestPoll_CompletedRetrievesTranscript(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stage := f.claimTranscribe(t)
	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))

	f.worker.finish(f.job.ID.String(), "And so the speaker began.")

	result, err := f.coordinator.PollAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, PollResult{Checked: 1, Completed: 1}, result)

	got, err := f.stages.Get(ctx, f.job.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.StageSuccess, got.State)
	assert.Equal(t, f.layout.WhisperTranscript(f.job), got.OutputPath)

	data, err := os.ReadFile(got.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "And so the speaker began.", string(data))
}

func TestPoll_WorkerFailureFailsStage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stage := f.claimTranscribe(t)
	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))

	f.worker.mu.Lock()
	f.worker.statuses[f.job.ID.String()] = StatusFailed
	f.worker.mu.Unlock()

	result, err := f.coordinator.PollAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	got, err := f.stages.Get(ctx, f.job.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.StageFailed, got.State)
	assert.Contains(t, got.LastError, "worker reported")
	assert.NotNil(t, got.NextEligibleAt)
}

func TestPoll_StillRunningLeavesStageAlone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stage := f.claimTranscribe(t)
	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))

	result, err := f.coordinator.PollAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, PollResult{Checked: 1}, result)

	got, err := f.stages.Get(ctx, f.job.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.StageRunning, got.State)
}

func TestDeploy_AfterCrashDoesNotReupload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// First process deploys, then dies.
	stage := f.claimTranscribe(t)
	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))
	require.Equal(t, 1, f.worker.deployCount())

	// Startup reclaim returns the stage to pending with attempts kept.
	n, err := f.stages.ReclaimAbandoned(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// Meanwhile the worker finished the job.
	f.worker.finish(f.job.ID.String(), "Recovered transcript.")

	// Second process claims and deploys again: the coordinator must see the
	// completed server-side job and retrieve instead of uploading.
	stage, err = f.stages.Claim(ctx, f.job.ID, models.StageTranscribe, "test-2", time.Now())
	require.NoError(t, err)
	require.NotNil(t, stage)

	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))
	assert.Equal(t, 1, f.worker.deployCount(), "no second upload")

	got, err := f.stages.Get(ctx, f.job.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.StageSuccess, got.State)

	data, err := os.ReadFile(got.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "Recovered transcript.", string(data))
}

func TestDeploy_WhileWorkerStillRunningSkipsUpload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stage := f.claimTranscribe(t)
	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))

	_, err := f.stages.ReclaimAbandoned(ctx)
	require.NoError(t, err)
	stage, err = f.stages.Claim(ctx, f.job.ID, models.StageTranscribe, "test-2", time.Now())
	require.NoError(t, err)
	require.NotNil(t, stage)

	require.NoError(t, f.coordinator.Deploy(ctx, f.job, stage, f.audioPath))
	assert.Equal(t, 1, f.worker.deployCount())
}

func TestWorkerClient_DeployRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(rw).Encode(map[string]string{"status": "queue full"})
	}))
	defer server.Close()

	client := NewWorkerClient(config.WhisperConfig{BaseURL: server.URL, Model: "large-v3"}, nil)

	audio := filepath.Join(t.TempDir(), "audio_segment.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o644))

	err := client.Deploy(context.Background(), audio, strings.Repeat("0", 26))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestWorkerClient_StatusTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		http.Error(rw, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewWorkerClient(config.WhisperConfig{
		BaseURL:       server.URL,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, nil)

	_, err := client.Status(context.Background(), strings.Repeat("0", 26))
	require.Error(t, err)
}
