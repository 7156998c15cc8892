package engine

import (
	"errors"
	"fmt"

	"github.com/mlcook/chapterforge/internal/llm"
)

// ErrQuotaExhausted halts a batch: the language model has no budget left, so
// further attempts in this run are doomed.
var ErrQuotaExhausted = errors.New("language model quota exhausted")

// ErrUnknownStage flags a stage name outside the catalog: a programmer error,
// never retried.
var ErrUnknownStage = errors.New("unknown stage")

// CorruptArtifactError reports an artifact that no longer parses. The stage
// fails and stays failed until a human repairs or removes the file.
type CorruptArtifactError struct {
	Path string
	Err  error
}

func (e *CorruptArtifactError) Error() string {
	return fmt.Sprintf("corrupt artifact %s: %v", e.Path, e.Err)
}

func (e *CorruptArtifactError) Unwrap() error {
	return e.Err
}

// IsQuota reports whether err is the quota-exhausted condition, from either
// the engine sentinel or a language-model error.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) || llm.IsQuota(err)
}
