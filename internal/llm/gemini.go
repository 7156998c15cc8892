package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mlcook/chapterforge/internal/config"
)

// GeminiClient is the primary cloud endpoint, reached through Gemini's
// OpenAI-compatible chat completions surface.
type GeminiClient struct {
	client        openai.Client
	model         string
	logger        *slog.Logger
	retryAttempts uint
	retryDelay    time.Duration
}

// NewGeminiClient creates a client for the configured Gemini endpoint.
func NewGeminiClient(cfg config.LLMEndpointConfig, retryAttempts int, retryDelay time.Duration, logger *slog.Logger) *GeminiClient {
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

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		// retry-go drives retries so backoff is uniform across endpoints.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &GeminiClient{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		logger:        logger,
		retryAttempts: uint(retryAttempts),
		retryDelay:    retryDelay,
	}
}

// Name returns the endpoint identifier.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// SubmitPrompt sends the prompt as a single user message and returns the
// first choice's text. Transport failures are retried; quota conditions are
// surfaced immediately so the caller can halt the batch.
func (c *GeminiClient) SubmitPrompt(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var reply string
	err := retry.Do(
		func() error {
			resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: c.model,
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage(prompt),
				},
			})
			if err != nil {
				return c.mapError(err)
			}
			if len(resp.Choices) == 0 {
				return NewError(KindParse, c.Name(), "response contained no choices")
			}
			reply = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Quota never recovers within a run; parse failures are
			// deterministic for the same response.
			return KindOf(err) == KindTransport
		}),
	)

	traceCall(c.logger, c.Name(), start, len(prompt), err)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// mapError classifies an openai SDK failure.
func (c *GeminiClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return NewError(KindQuota, c.Name(), apiErr.Message)
		}
		return classify(KindTransport, c.Name(), apiErr.Message)
	}
	return classify(KindTransport, c.Name(), err.Error())
}

// Ensure GeminiClient implements Client at compile time.
var _ Client = (*GeminiClient)(nil)
