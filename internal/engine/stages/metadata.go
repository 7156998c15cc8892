package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/paragraphs"
	"github.com/mlcook/chapterforge/internal/prompts"
)

// Metadata category keys, in generation order.
const (
	CategoryTitle    = "title"
	CategoryThesis   = "thesis"
	CategorySummary  = "summary"
	CategoryOutline  = "outline"
	CategoryTone     = "tone"
	CategoryMainText = "main_text"
)

// Metadata is the metadata.json object: category name to value, nil until
// generated.
type Metadata map[string]*string

// Filled reports whether the category holds a usable value.
func (m Metadata) Filled(category string) bool {
	v, ok := m[category]
	return ok && v != nil && !strings.HasPrefix(*v, paragraphs.ErrorMarkerPrefix)
}

// Get returns the category's value, or "" when unfilled.
func (m Metadata) Get(category string) string {
	if !m.Filled(category) {
		return ""
	}
	return *m[category]
}

// LoadMetadata reads metadata.json. A missing file yields an empty Metadata.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &engine.CorruptArtifactError{Path: path, Err: err}
	}
	return meta, nil
}

// SaveMetadata writes metadata.json atomically.
func SaveMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return artifacts.WriteFileAtomic(path, data, 0o644)
}

// categoryDef binds a category name to its generator. The table is static so
// a configured category without a generator is a compile-time absence, not a
// runtime lookup failure.
type categoryDef struct {
	name     string
	generate func(ctx context.Context, client llm.Client, transcript string) (string, error)
}

var categoryTable = []categoryDef{
	{CategoryTitle, generateSimple(prompts.BuildTitlePrompt)},
	{CategoryThesis, generateThesis},
	{CategorySummary, generateSimple(prompts.BuildSummaryPrompt)},
	{CategoryOutline, generateSimple(prompts.BuildOutlinePrompt)},
	{CategoryTone, generateSimple(prompts.BuildTonePrompt)},
	{CategoryMainText, generateSimple(prompts.BuildMainTextPrompt)},
}

// Categories returns the configured category names in order.
func Categories() []string {
	names := make([]string, len(categoryTable))
	for i, def := range categoryTable {
		names[i] = def.name
	}
	return names
}

func generateSimple(build func(string) string) func(context.Context, llm.Client, string) (string, error) {
	return func(ctx context.Context, client llm.Client, transcript string) (string, error) {
		reply, err := client.SubmitPrompt(ctx, build(transcript))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(reply), nil
	}
}

// generateThesis produces three independent drafts and lets a decision
// prompt pick the best one.
func generateThesis(ctx context.Context, client llm.Client, transcript string) (string, error) {
	drafts := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		draft, err := client.SubmitPrompt(ctx, prompts.BuildThesisDraftPrompt(transcript))
		if err != nil {
			return "", err
		}
		drafts = append(drafts, strings.TrimSpace(draft))
	}

	chosen, err := client.SubmitPrompt(ctx, prompts.BuildThesisDecisionPrompt(drafts))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(chosen), nil
}

// ExtractMetadata fills metadata.json category by category from the formatted
// transcript, using the metered cloud endpoint.
type ExtractMetadata struct {
	client llm.Client
}

// Run generates every unfilled category. Quota exhaustion stops immediately
// with filled categories intact; any other per-category failure stores an
// error marker and moves on. The stage succeeds only when every category is
// filled.
func (s *ExtractMetadata) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	raw, err := os.ReadFile(task.PrevOutput)
	if err != nil {
		return engine.Result{}, fmt.Errorf("reading formatted transcript: %w", err)
	}
	transcript := string(raw)

	path := task.Layout.Metadata(task.Job)
	meta, err := LoadMetadata(path)
	if err != nil {
		return engine.Result{}, err
	}

	for _, def := range categoryTable {
		if meta.Filled(def.name) {
			continue
		}

		value, err := def.generate(ctx, s.client, transcript)
		if err != nil {
			if llm.IsQuota(err) {
				// Already-filled categories stay; the batch halts.
				if serr := SaveMetadata(path, meta); serr != nil {
					return engine.Result{}, serr
				}
				return engine.Result{}, err
			}
			marker := paragraphs.ErrorMarkerPrefix + err.Error()
			meta[def.name] = &marker
			task.Logger.Warn("metadata category failed",
				slog.String("category", def.name),
				slog.String("error", err.Error()))
		} else {
			meta[def.name] = &value
			task.Logger.Info("metadata category generated", slog.String("category", def.name))
		}

		if err := SaveMetadata(path, meta); err != nil {
			return engine.Result{}, err
		}
	}

	var unfilled []string
	for _, def := range categoryTable {
		if !meta.Filled(def.name) {
			unfilled = append(unfilled, def.name)
		}
	}
	if len(unfilled) > 0 {
		return engine.Result{}, fmt.Errorf("metadata incomplete: %s", strings.Join(unfilled, ", "))
	}

	return engine.Result{OutputPath: path}, nil
}
