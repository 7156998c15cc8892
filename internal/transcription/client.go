// Package transcription coordinates with the remote whisper worker over its
// HTTP protocol: deploy an audio job, poll its status, retrieve the
// transcript. The job's ULID is the sole correlation key.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/mlcook/chapterforge/internal/config"
)

// Worker status values reported by the remote service.
const (
	StatusDeployed  = "deployed"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// WorkerClient speaks the transcription worker's HTTP protocol.
type WorkerClient struct {
	baseURL       string
	model         string
	deployClient  *http.Client
	pollClient    *http.Client
	logger        *slog.Logger
	retryAttempts uint
	retryDelay    time.Duration
}

// NewWorkerClient creates a client from the whisper config.
func NewWorkerClient(cfg config.WhisperConfig, logger *slog.Logger) *WorkerClient {
	if logger == nil {
		logger = slog.Default()
	}
	deployTimeout := cfg.DeployTimeout
	if deployTimeout == 0 {
		deployTimeout = 10 * time.Minute
	}
	pollTimeout := cfg.HTTPTimeout
	if pollTimeout == 0 {
		pollTimeout = 60 * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = 5 * time.Second
	}

	return &WorkerClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		model:         cfg.Model,
		deployClient:  &http.Client{Timeout: deployTimeout},
		pollClient:    &http.Client{Timeout: pollTimeout},
		logger:        logger,
		retryAttempts: uint(attempts),
		retryDelay:    delay,
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

// Deploy uploads the audio file under the given ULID. The worker answers
// {"status":"deployed"} on acceptance; anything else is an error. Deploy is
// never retried internally, so a flaky link cannot double-upload.
func (c *WorkerClient) Deploy(ctx context.Context, audioPath, ulid string) error {
	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("opening audio %s: %w", audioPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading audio %s: %w", audioPath, err)
	}
	if err := mw.WriteField("whisper_model", c.model); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}
	if err := mw.WriteField("ulid_", ulid); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/new-job", &body)
	if err != nil {
		return fmt.Errorf("building deploy request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.deployClient.Do(req)
	if err != nil {
		return fmt.Errorf("deploying job %s: %w", ulid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deploying job %s: unexpected status %d", ulid, resp.StatusCode)
	}

	var decoded statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("deploying job %s: parsing response: %w", ulid, err)
	}
	if decoded.Status != StatusDeployed {
		return fmt.Errorf("deploying job %s: worker answered status %q", ulid, decoded.Status)
	}

	c.logger.Info("transcription job deployed",
		slog.String("ulid", ulid),
		slog.String("model", c.model))
	return nil
}

// Status reports the worker-side state of the job. Transient transport
// failures are retried before surfacing.
func (c *WorkerClient) Status(ctx context.Context, ulid string) (string, error) {
	var status string
	err := retry.Do(
		func() error {
			var decoded statusResponse
			if err := c.getJSON(ctx, "/report-job-status/"+ulid, &decoded); err != nil {
				return err
			}
			status = decoded.Status
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("checking status of job %s: %w", ulid, err)
	}
	return status, nil
}

// Retrieve fetches the finished transcript text. Server-side state is left in
// place so a failed retrieve can be repeated.
func (c *WorkerClient) Retrieve(ctx context.Context, ulid string) (string, error) {
	var transcript string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/retrieve-job/"+ulid, nil)
			if err != nil {
				return err
			}
			resp, err := c.pollClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			transcript = string(raw)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("retrieving job %s: %w", ulid, err)
	}
	return transcript, nil
}

func (c *WorkerClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.pollClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
