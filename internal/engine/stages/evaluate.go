package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/paragraphs"
	"github.com/mlcook/chapterforge/internal/prompts"
)

// EvaluateParagraphs reviews every edited paragraph, and immediately
// regenerates any edit that rates below the passing threshold, carrying the
// evaluator's critique into the retry. At most one regeneration per paragraph
// per run; regenerated paragraphs then wait for human review.
type EvaluateParagraphs struct {
	client   llm.Client
	pipeline config.PipelineConfig
}

// Run evaluates each non-passed paragraph. The stage succeeds when every
// paragraph has passed; regenerated paragraphs park the stage in blocked
// until the review flow settles them.
func (s *EvaluateParagraphs) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	path := task.Layout.Paragraphs(task.Job)
	records, err := paragraphs.Load(path)
	if err != nil {
		return engine.Result{}, &engine.CorruptArtifactError{Path: path, Err: err}
	}
	if records == nil {
		return engine.Result{}, fmt.Errorf("paragraphs file %s is missing", path)
	}

	// Backfill evaluation fields on files written before this stage existed.
	for i := range records {
		if records[i].EvaluationStatus == "" {
			records[i].EvaluationStatus = paragraphs.StatusPending
		}
	}

	thesis, tone := s.chapterContext(ctx, task)
	passing := s.pipeline.PassingRating
	if passing <= 0 {
		passing = 8
	}

	for i := range records {
		rec := &records[i]
		if rec.EvaluationStatus == paragraphs.StatusPassed {
			continue
		}
		if rec.NeedsEdit() {
			return engine.Result{}, fmt.Errorf("paragraph %d has no edit to evaluate", rec.Index)
		}

		var prevEdited, nextEdited string
		if i > 0 {
			prevEdited = records[i-1].EditedText()
		}
		if i < len(records)-1 {
			nextEdited = records[i+1].EditedText()
		}

		prompt := prompts.BuildEvaluationPrompt(rec.Original, *rec.Edited, prevEdited, nextEdited, thesis, tone)
		reply, err := s.client.SubmitPrompt(ctx, prompt)
		if err != nil {
			if serr := paragraphs.Save(path, records); serr != nil {
				return engine.Result{}, serr
			}
			return engine.Result{}, err
		}

		rec.FullEvaluationOutput = &reply

		ev, err := prompts.ParseEvaluation(reply)
		if err != nil {
			// No rating means no critique to regenerate from; the
			// paragraph stays failed and the stage fails at the end.
			rec.EvaluationStatus = paragraphs.StatusFailed
			task.Logger.Warn("unparseable evaluation reply",
				slog.Int("index", rec.Index),
				slog.String("error", err.Error()))
			if err := paragraphs.Save(path, records); err != nil {
				return engine.Result{}, err
			}
			continue
		}

		rec.Rating = &ev.Rating
		rec.Critique = &ev.Critique

		if ev.Rating >= passing {
			rec.EvaluationStatus = paragraphs.StatusPassed
			task.Logger.Debug("paragraph passed evaluation",
				slog.Int("index", rec.Index),
				slog.Int("rating", ev.Rating))
		} else {
			rec.EvaluationStatus = paragraphs.StatusFailed
			if err := s.regenerate(ctx, task, rec); err != nil {
				if llm.IsQuota(err) {
					if serr := paragraphs.Save(path, records); serr != nil {
						return engine.Result{}, serr
					}
					return engine.Result{}, err
				}
				task.Logger.Warn("regeneration failed",
					slog.Int("index", rec.Index),
					slog.String("error", err.Error()))
			}
		}

		if err := paragraphs.Save(path, records); err != nil {
			return engine.Result{}, err
		}
	}

	if paragraphs.AllPassed(records) {
		return engine.Result{OutputPath: path}, nil
	}

	regenerated, failed := 0, 0
	for i := range records {
		switch records[i].EvaluationStatus {
		case paragraphs.StatusRegenerated:
			regenerated++
		case paragraphs.StatusFailed:
			failed++
		}
	}
	if failed > 0 {
		return engine.Result{}, fmt.Errorf("%d paragraph(s) failed evaluation without regeneration", failed)
	}
	return engine.Result{
		BlockedReason: fmt.Sprintf("%d paragraph(s) regenerated, awaiting review", regenerated),
	}, nil
}

// regenerate re-edits one below-threshold paragraph using the critique. The
// low rating stays on the record alongside the new edit.
func (s *EvaluateParagraphs) regenerate(ctx context.Context, task *engine.Task, rec *paragraphs.Record) error {
	critique := ""
	if rec.Critique != nil {
		critique = *rec.Critique
	}

	regenPrompt := prompts.BuildRegenerationPrompt(rec.Prompt, critique)
	reply, err := s.client.SubmitPrompt(ctx, regenPrompt)
	if err != nil {
		return err
	}

	rec.SetEdited(reply)
	rec.EvaluationStatus = paragraphs.StatusRegenerated
	rec.RegenerationPrompt = &regenPrompt

	task.Logger.Info("paragraph regenerated",
		slog.Int("index", rec.Index),
		slog.Int("rating", derefInt(rec.Rating)))
	return nil
}

// chapterContext pulls thesis and tone from metadata.json for the evaluator
// prompt; both default to empty when unavailable.
func (s *EvaluateParagraphs) chapterContext(ctx context.Context, task *engine.Task) (thesis, tone string) {
	metaPath, err := task.OutputOf(ctx, models.StageExtractMetadata)
	if err != nil {
		return "", ""
	}
	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return "", ""
	}
	return meta.Get(CategoryThesis), meta.Get(CategoryTone)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
