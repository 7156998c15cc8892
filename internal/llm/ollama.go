package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/mlcook/chapterforge/internal/config"
)

// OllamaClient is the local endpoint, used for the high-volume paragraph
// editing work so cloud quota is reserved for metadata and final polish.
type OllamaClient struct {
	baseURL       string
	model         string
	httpClient    *http.Client
	logger        *slog.Logger
	retryAttempts uint
	retryDelay    time.Duration
}

// ollamaGenerateRequest is the /api/generate request body.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is the non-streaming /api/generate response body.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaClient creates a client for the configured Ollama endpoint.
func NewOllamaClient(cfg config.LLMEndpointConfig, retryAttempts int, retryDelay time.Duration, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}
	if retryDelay == 0 {
		retryDelay = 5 * time.Second
	}

	return &OllamaClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		model:         cfg.Model,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
		retryAttempts: uint(retryAttempts),
		retryDelay:    retryDelay,
	}
}

// Name returns the endpoint identifier.
func (c *OllamaClient) Name() string {
	return "ollama"
}

// SubmitPrompt sends the prompt to /api/generate (non-streaming) and returns
// the model's reply.
func (c *OllamaClient) SubmitPrompt(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var reply string
	err := retry.Do(
		func() error {
			out, err := c.generate(ctx, prompt)
			if err != nil {
				return err
			}
			reply = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return KindOf(err) == KindTransport
		}),
	)

	traceCall(c.logger, c.Name(), start, len(prompt), err)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// generate performs one request/response cycle.
func (c *OllamaClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", NewError(KindOther, c.Name(), fmt.Sprintf("encoding request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", NewError(KindOther, c.Name(), fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(KindTransport, c.Name(), err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(KindTransport, c.Name(), err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return "", classify(KindTransport, c.Name(),
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", NewError(KindParse, c.Name(), fmt.Sprintf("decoding response: %v", err))
	}
	if decoded.Error != "" {
		return "", classify(KindOther, c.Name(), decoded.Error)
	}

	return decoded.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure OllamaClient implements Client at compile time.
var _ Client = (*OllamaClient)(nil)
