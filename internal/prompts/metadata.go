package prompts

import (
	"fmt"
	"strings"
)

// BuildTitlePrompt asks for a chapter title.
func BuildTitlePrompt(transcript string) string {
	return fmt.Sprintf(`Read the transcript below and propose a concise, compelling chapter title. Reply with the title only, no quotation marks, no commentary.

Transcript:
%s`, transcript)
}

// BuildThesisDraftPrompt asks for one independent thesis draft. It is
// submitted three times; BuildThesisDecisionPrompt then picks the best draft.
func BuildThesisDraftPrompt(transcript string) string {
	return fmt.Sprintf(`Read the transcript below and state its central thesis in one or two sentences. Capture the single main argument the speaker is making, not a summary of topics. Reply with the thesis only.

Transcript:
%s`, transcript)
}

// BuildThesisDecisionPrompt asks the model to pick the best of the drafts.
func BuildThesisDecisionPrompt(drafts []string) string {
	var b strings.Builder
	b.WriteString("Below are candidate thesis statements for the same talk. Choose the one that most precisely captures the speaker's central argument. Reply with the chosen thesis verbatim and nothing else.\n\n")
	for i, d := range drafts {
		fmt.Fprintf(&b, "Candidate %d:\n%s\n\n", i+1, d)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildSummaryPrompt asks for a short summary.
func BuildSummaryPrompt(transcript string) string {
	return fmt.Sprintf(`Read the transcript below and write a summary of three to five sentences covering the main points in order. Reply with the summary only.

Transcript:
%s`, transcript)
}

// BuildOutlinePrompt asks for a structural outline.
func BuildOutlinePrompt(transcript string) string {
	return fmt.Sprintf(`Read the transcript below and produce a brief outline of its structure: the major sections in order, one line each. Reply with the outline only.

Transcript:
%s`, transcript)
}

// BuildTonePrompt asks for the speaker's tone, used later by the paragraph
// editor templates.
func BuildTonePrompt(transcript string) string {
	return fmt.Sprintf(`Read the transcript below and describe the speaker's tone in a few words (for example: "warm and pastoral", "urgent and direct", "scholarly"). Reply with the tone description only.

Transcript:
%s`, transcript)
}

// BuildMainTextPrompt asks for the scripture or source text the talk centers
// on, if any.
func BuildMainTextPrompt(transcript string) string {
	return fmt.Sprintf(`Read the transcript below and identify the main text or passage the talk is built around (for example a scripture reference or quoted source). If there is none, reply with "none". Reply with the reference only.

Transcript:
%s`, transcript)
}
