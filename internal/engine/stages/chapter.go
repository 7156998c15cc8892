package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/mlcook/chapterforge/internal/artifacts"
	"github.com/mlcook/chapterforge/internal/engine"
	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/models"
	"github.com/mlcook/chapterforge/internal/paragraphs"
	"github.com/mlcook/chapterforge/internal/prompts"
)

// BuildChapter assembles the finished document: concatenated edited
// paragraphs, one final polish pass, two advisory audits, and the metadata
// header.
type BuildChapter struct {
	// primary is the metered cloud endpoint; fallback is the local one,
	// used when the primary is down or out of budget.
	primary  llm.Client
	fallback llm.Client
}

var blankRunsRE = regexp.MustCompile(`\n{3,}`)

// Run writes finished_document.txt. It refuses to assemble a chapter with
// any unedited paragraph.
func (s *BuildChapter) Run(ctx context.Context, task *engine.Task) (engine.Result, error) {
	records, err := paragraphs.Load(task.PrevOutput)
	if err != nil {
		return engine.Result{}, &engine.CorruptArtifactError{Path: task.PrevOutput, Err: err}
	}
	if len(records) == 0 {
		return engine.Result{}, fmt.Errorf("paragraphs file %s is empty", task.PrevOutput)
	}

	parts := make([]string, len(records))
	for i := range records {
		if records[i].Edited == nil {
			return engine.Result{}, fmt.Errorf("paragraph %d has no edit; refusing to assemble", records[i].Index)
		}
		parts[i] = *records[i].Edited
	}

	text := strings.Join(parts, "\n\n")
	text = strings.ReplaceAll(text, "[...]", "")
	text = blankRunsRE.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	metaPath, err := task.OutputOf(ctx, models.StageExtractMetadata)
	if err != nil {
		return engine.Result{}, err
	}
	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return engine.Result{}, err
	}

	polished, err := s.polish(ctx, task, text, meta)
	if err != nil {
		return engine.Result{}, err
	}

	s.audit(ctx, task, polished)

	doc := s.assemble(task.Job, meta, polished)
	output := task.Layout.FinishedDocument(task.Job)
	if err := artifacts.WriteFileAtomic(output, []byte(doc), 0o644); err != nil {
		return engine.Result{}, err
	}

	return engine.Result{OutputPath: output}, nil
}

// polish runs the final editorial pass on the primary endpoint, falling back
// to the local one when the primary fails for any reason (including quota;
// the local endpoint is unmetered).
func (s *BuildChapter) polish(ctx context.Context, task *engine.Task, text string, meta Metadata) (string, error) {
	prompt := prompts.BuildFinalPolishPrompt(text,
		meta.Get(CategoryThesis), meta.Get(CategoryTone), meta.Get(CategoryOutline))

	reply, err := s.primary.SubmitPrompt(ctx, prompt)
	if err == nil {
		return strings.TrimSpace(reply), nil
	}

	task.Logger.Warn("primary polish failed, trying fallback endpoint",
		slog.String("primary", s.primary.Name()),
		slog.String("error", err.Error()))

	reply, ferr := s.fallback.SubmitPrompt(ctx, prompt)
	if ferr != nil {
		return "", fmt.Errorf("polish failed on both endpoints: %v; %w", err, ferr)
	}
	return strings.TrimSpace(reply), nil
}

// audit runs the fidelity and publication-readiness checks. Their outputs are
// advisory: they are logged for the operator, and a failed audit call never
// fails the stage.
func (s *BuildChapter) audit(ctx context.Context, task *engine.Task, polished string) {
	if formattedPath, err := task.OutputOf(ctx, models.StageFormatParagraphs); err == nil {
		if original, err := os.ReadFile(formattedPath); err == nil {
			s.runAudit(ctx, task, "fidelity", prompts.BuildFidelityAuditPrompt(string(original), polished))
		}
	}
	s.runAudit(ctx, task, "readiness", prompts.BuildReadinessAuditPrompt(polished))
}

func (s *BuildChapter) runAudit(ctx context.Context, task *engine.Task, name, prompt string) {
	reply, err := s.primary.SubmitPrompt(ctx, prompt)
	if err != nil {
		reply, err = s.fallback.SubmitPrompt(ctx, prompt)
	}
	if err != nil {
		task.Logger.Warn("audit unavailable",
			slog.String("audit", name),
			slog.String("error", err.Error()))
		return
	}
	task.Logger.Info("audit result",
		slog.String("audit", name),
		slog.String("output", strings.TrimSpace(reply)))
}

// assemble lays out the finished document: title, upload date, thesis,
// summary, the Sermon heading, then the polished body.
func (s *BuildChapter) assemble(job *models.Job, meta Metadata, polished string) string {
	date := ""
	if job.Recording != nil && job.Recording.UploadDate != nil {
		date = job.Recording.UploadDate.Format("02 January, 2006")
	}

	var b strings.Builder
	b.WriteString(meta.Get(CategoryTitle))
	b.WriteString("\n")
	b.WriteString(date)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Thesis: %s\n", meta.Get(CategoryThesis))
	fmt.Fprintf(&b, "Summary: %s\n", meta.Get(CategorySummary))
	b.WriteString("Sermon\n\n")
	b.WriteString(polished)
	b.WriteString("\n")
	return b.String()
}
