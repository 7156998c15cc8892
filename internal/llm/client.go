package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Client is a language-model endpoint that answers one prompt with one text
// reply. Failures are *llm.Error values carrying a kind callers branch on.
type Client interface {
	// Name identifies the endpoint for logs and error messages.
	Name() string

	// SubmitPrompt sends the prompt and returns the model's text reply.
	SubmitPrompt(ctx context.Context, prompt string) (string, error)
}

// traceCall logs one completed call with a correlation ID, so every model
// interaction is recoverable from the logs.
func traceCall(logger *slog.Logger, endpoint string, start time.Time, promptLen int, err error) {
	attrs := []any{
		slog.String("call_id", uuid.New().String()),
		slog.String("endpoint", endpoint),
		slog.Int("prompt_chars", promptLen),
		slog.Duration("latency", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", err.Error()),
			slog.String("error_kind", string(KindOf(err))),
		)
		logger.Warn("llm call failed", attrs...)
		return
	}
	logger.Debug("llm call completed", attrs...)
}
