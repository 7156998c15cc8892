package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/paragraphs"
	"github.com/mlcook/chapterforge/internal/prompts"
)

// EditParagraphs rewrites each transcript paragraph into written prose with
// the local language model, one paragraph at a time, saving after each so a
// crash loses at most one paragraph of work.
type EditParagraphs struct {
	client llm.Client
}

// Run creates paragraphs.json from the formatted transcript if missing, then
// fills every unedited entry. The stage succeeds only when all entries carry
// a usable edit.
func (s *EditParagraphs) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	path := task.Layout.Paragraphs(task.Job)

	records, err := paragraphs.Load(path)
	if err != nil {
		return engine.Result{}, &engine.CorruptArtifactError{Path: path, Err: err}
	}
	if records == nil {
		records, err = s.initRecords(ctx, task)
		if err != nil {
			return engine.Result{}, err
		}
		if err := paragraphs.Save(path, records); err != nil {
			return engine.Result{}, err
		}
	}

	for i := range records {
		rec := &records[i]
		if !rec.NeedsEdit() {
			continue
		}

		reply, err := s.client.SubmitPrompt(ctx, rec.Prompt)
		if err != nil {
			if llm.IsQuota(err) {
				if serr := paragraphs.Save(path, records); serr != nil {
					return engine.Result{}, serr
				}
				return engine.Result{}, err
			}
			rec.SetEdited(paragraphs.ErrorMarkerPrefix + err.Error())
			task.Logger.Warn("paragraph edit failed",
				slog.Int("index", rec.Index),
				slog.String("error", err.Error()))
		} else {
			rec.SetEdited(strings.TrimSpace(reply))
			task.Logger.Debug("paragraph edited", slog.Int("index", rec.Index))
		}

		if err := paragraphs.Save(path, records); err != nil {
			return engine.Result{}, err
		}
	}

	if !paragraphs.AllEdited(records) {
		remaining := 0
		for i := range records {
			if records[i].NeedsEdit() {
				remaining++
			}
		}
		return engine.Result{}, fmt.Errorf("%d of %d paragraphs remain unedited", remaining, len(records))
	}

	return engine.Result{OutputPath: path}, nil
}

// blankRunRE matches paragraph boundaries in the formatted transcript.
var blankRunRE = regexp.MustCompile(`\n\s*\n`)

// initRecords builds the initial paragraph array: one record per blank-line-
// separated paragraph, each with its position-appropriate editor prompt.
func (s *EditParagraphs) initRecords(ctx context.Context, task *engine.Task) ([]paragraphs.Record, error) {
	formattedPath, err := task.OutputOf(ctx, models.StageFormatParagraphs)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(formattedPath)
	if err != nil {
		return nil, fmt.Errorf("reading formatted transcript: %w", err)
	}

	var paras []string
	for _, part := range blankRunRE.Split(string(raw), -1) {
		if p := strings.TrimSpace(part); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) == 0 {
		return nil, fmt.Errorf("formatted transcript %s contains no paragraphs", formattedPath)
	}

	tone := s.speakerTone(ctx, task)

	records := make([]paragraphs.Record, len(paras))
	for i, p := range paras {
		var prev, next string
		if i > 0 {
			prev = paras[i-1]
		}
		if i < len(paras)-1 {
			next = paras[i+1]
		}

		pos := prompts.PositionStandard
		switch {
		case len(paras) == 1:
			// A single paragraph keeps the standard template with empty
			// neighbors.
		case i == 0:
			pos = prompts.PositionFirst
		case i == len(paras)-1:
			pos = prompts.PositionLast
		}

		records[i] = paragraphs.Record{
			Index:            i,
			Original:         p,
			Prompt:           prompts.BuildEditorPrompt(pos, prev, p, next, tone),
			EvaluationStatus: paragraphs.StatusPending,
		}
	}
	return records, nil
}

// speakerTone pulls the tone from metadata.json; absent metadata falls back
// to the default tone.
func (s *EditParagraphs) speakerTone(ctx context.Context, task *engine.Task) string {
	metaPath, err := task.OutputOf(ctx, models.StageExtractMetadata)
	if err != nil {
		return ""
	}
	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return ""
	}
	return meta.Get(CategoryTone)
}
