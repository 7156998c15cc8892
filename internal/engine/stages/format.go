package stages

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/paragraphs"
)

// FormatParagraphs turns the raw transcript into a paragraph-formatted one,
// with breaks chosen by the local language model one sentence chunk at a
// time.
type FormatParagraphs struct {
	client   llm.Client
	pipeline config.PipelineConfig
}

// Run reads the whisper transcript, segments it, and writes the paragraphs
// joined by blank lines.
func (s *FormatParagraphs) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	raw, err := os.ReadFile(task.PrevOutput)
	if err != nil {
		return engine.Result{}, fmt.Errorf("reading transcript: %w", err)
	}

	segmenter := paragraphs.NewSegmenter(s.client,
		s.pipeline.ChunkSize,
		s.pipeline.ContextParagraphs,
		s.pipeline.MinBreakIndex,
		task.Logger)

	paras, err := segmenter.Segment(ctx, string(raw))
	if err != nil {
		return engine.Result{}, err
	}
	if len(paras) == 0 {
		return engine.Result{}, fmt.Errorf("transcript %s contains no sentences", task.PrevOutput)
	}

	output := task.Layout.FormattedTranscript(task.Job)
	content := strings.Join(paras, "\n\n") + "\n"
	if err := artifacts.WriteFileAtomic(output, []byte(content), 0o644); err != nil {
		return engine.Result{}, err
	}

	return engine.Result{OutputPath: output}, nil
}
