package prompts

import (
	"fmt"
	"strconv"
	"strings"
)

// Markers the evaluator reply must contain.
const (
	RatingMarker   = "Rating:"
	CritiqueMarker = "CRITIQUE FOR REDO:"
)

// BuildEvaluationPrompt builds the contextual quality check for one edited
// paragraph. The reply must carry a "Rating: <integer>" line and a
// "CRITIQUE FOR REDO:" block.
func BuildEvaluationPrompt(original, edited, previousEdited, nextEdited, thesis, tone string) string {
	if tone == "" {
		tone = DefaultTone
	}

	var b strings.Builder
	b.WriteString("You are reviewing one edited paragraph of a transcribed talk.\n\n")
	fmt.Fprintf(&b, "The talk's thesis: %s\n", thesis)
	fmt.Fprintf(&b, "Speaker tone: %s\n\n", tone)

	if previousEdited != "" {
		fmt.Fprintf(&b, "Preceding edited paragraph (context):\n%s\n\n", previousEdited)
	}
	if nextEdited != "" {
		fmt.Fprintf(&b, "Following edited paragraph (context):\n%s\n\n", nextEdited)
	}

	fmt.Fprintf(&b, "Original transcript paragraph:\n%s\n\n", original)
	fmt.Fprintf(&b, "Edited paragraph under review:\n%s\n\n", edited)

	b.WriteString(`Rate the edited paragraph from 1 to 10 for fidelity to the original, flow with its neighbors, and publication readiness. Then give a critique an editor could act on.

Reply in exactly this format:
Rating: <integer 1-10>
CRITIQUE FOR REDO: <your critique>`)

	return b.String()
}

// BuildRegenerationPrompt appends the revision addendum, carrying the
// evaluator's critique, to the paragraph's original editor prompt.
func BuildRegenerationPrompt(editorPrompt, critique string) string {
	return fmt.Sprintf(`%s

A previous attempt at this edit was reviewed and found lacking. Revise your edit to address this critique:
%s

Reply with the rewritten paragraph only.`, editorPrompt, critique)
}

// Evaluation is the parsed shape of an evaluator reply.
type Evaluation struct {
	Rating   int
	Critique string
}

// ParseEvaluation extracts the rating and critique from an evaluator reply.
func ParseEvaluation(reply string) (Evaluation, error) {
	ratingAt := strings.Index(reply, RatingMarker)
	if ratingAt < 0 {
		return Evaluation{}, &ParseError{Reply: reply, Want: RatingMarker}
	}

	rest := reply[ratingAt+len(RatingMarker):]
	rating := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] >= '0' && rest[i] <= '9' {
			end := i
			for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
				end++
			}
			n, err := strconv.Atoi(rest[i:end])
			if err != nil {
				return Evaluation{}, &ParseError{Reply: reply, Want: "an integer rating"}
			}
			rating = n
			break
		}
		// Stop scanning at a newline so a rating on a later line is not
		// mistaken for this one's value.
		if rest[i] == '\n' {
			break
		}
	}
	if rating < 0 {
		return Evaluation{}, &ParseError{Reply: reply, Want: "an integer rating"}
	}

	critique := ""
	if critiqueAt := strings.Index(reply, CritiqueMarker); critiqueAt >= 0 {
		critique = strings.TrimSpace(reply[critiqueAt+len(CritiqueMarker):])
	}

	return Evaluation{Rating: rating, Critique: critique}, nil
}
