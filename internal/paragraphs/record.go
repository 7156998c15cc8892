package paragraphs

// EvaluationStatus tracks where a paragraph stands in the quality loop.
type EvaluationStatus string

const (
	StatusPending     EvaluationStatus = "pending"
	StatusPassed      EvaluationStatus = "passed"
	StatusFailed      EvaluationStatus = "failed"
	StatusRegenerated EvaluationStatus = "regenerated"
)

// ErrorMarkerPrefix flags a field whose generation failed; such fields are
// treated as unfilled on the next run.
const ErrorMarkerPrefix = "ERROR: "

// Record is one paragraph of the formatted transcript together with its edit
// and evaluation state. The array in paragraphs.json is ordered by Index and
// append-only in length; individual entries are mutable.
type Record struct {
	Index                int              `json:"index"`
	Original             string           `json:"original"`
	Prompt               string           `json:"prompt"`
	Edited               *string          `json:"edited"`
	EvaluationStatus     EvaluationStatus `json:"evaluation_status"`
	Rating               *int             `json:"rating"`
	Critique             *string          `json:"critique"`
	FullEvaluationOutput *string          `json:"full_evaluation_output"`
	RegenerationPrompt   *string          `json:"regeneration_prompt"`
}

// NeedsEdit reports whether the editor still owes this paragraph a rewrite.
func (r *Record) NeedsEdit() bool {
	return r.Edited == nil || isErrorMarker(*r.Edited)
}

// SetEdited stores the editor's output.
func (r *Record) SetEdited(text string) {
	r.Edited = &text
}

// EditedText returns the edited text, or "" when none is usable.
func (r *Record) EditedText() string {
	if r.NeedsEdit() {
		return ""
	}
	return *r.Edited
}

func isErrorMarker(s string) bool {
	return len(s) >= len(ErrorMarkerPrefix) && s[:len(ErrorMarkerPrefix)] == ErrorMarkerPrefix
}

// AllEdited reports whether every record carries a usable edited value.
func AllEdited(records []Record) bool {
	for i := range records {
		if records[i].NeedsEdit() {
			return false
		}
	}
	return len(records) > 0
}

// AllPassed reports whether every record has passed evaluation.
func AllPassed(records []Record) bool {
	for i := range records {
		if records[i].EvaluationStatus != StatusPassed {
			return false
		}
	}
	return len(records) > 0
}
