// Package engine is the durable job runner: it advances each job through the
// fixed stage catalog, enforcing ordering, single-runner claims, retry
// backoff, and idempotent re-runs.
package engine

import "github.com/mlcook/chapterforge/internal/models"

// StageDef describes one entry of the fixed stage catalog.
type StageDef struct {
	// Name is the catalog name of the stage.
	Name string

	// DependsOn is the stage that must be success before this one may run.
	// Empty for the first stage.
	DependsOn string

	// AutoRetry marks stages the watch loop may retry on its own. Stages
	// that spend model budget are retried only on user request.
	AutoRetry bool
}

// Catalog is the fixed, ordered stage list. Adding a stage is a code change,
// not configuration.
var Catalog = []StageDef{
	{Name: models.StageDownloadAudio, AutoRetry: true},
	{Name: models.StageExtractSegment, DependsOn: models.StageDownloadAudio, AutoRetry: true},
	{Name: models.StageTranscribe, DependsOn: models.StageExtractSegment, AutoRetry: true},
	{Name: models.StageFormatParagraphs, DependsOn: models.StageTranscribe},
	{Name: models.StageExtractMetadata, DependsOn: models.StageFormatParagraphs},
	{Name: models.StageEditParagraphs, DependsOn: models.StageExtractMetadata},
	{Name: models.StageEvaluateParagraphs, DependsOn: models.StageEditParagraphs},
	{Name: models.StageBuildChapter, DependsOn: models.StageEvaluateParagraphs},
}

// Def returns the catalog entry for name.
func Def(name string) (StageDef, bool) {
	for _, def := range Catalog {
		if def.Name == name {
			return def, true
		}
	}
	return StageDef{}, false
}

// StageNames returns the catalog names in pipeline order.
func StageNames() []string {
	names := make([]string, len(Catalog))
	for i, def := range Catalog {
		names[i] = def.Name
	}
	return names
}

// IsValidStage reports whether name is in the catalog.
func IsValidStage(name string) bool {
	_, ok := Def(name)
	return ok
}
