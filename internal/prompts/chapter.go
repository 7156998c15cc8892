package prompts

import "fmt"

// BuildFinalPolishPrompt sends the assembled chapter text for one last pass.
func BuildFinalPolishPrompt(text, thesis, tone, outline string) string {
	if tone == "" {
		tone = DefaultTone
	}
	return fmt.Sprintf(`You are giving a final editorial polish to a complete chapter assembled from edited transcript paragraphs.

Thesis: %s
Speaker tone: %s
Outline:
%s

Smooth transitions between paragraphs, fix any remaining spoken-language artifacts, and keep the speaker's voice. Do not add content, remove content, or reorder ideas. Reply with the polished chapter text only.

Chapter text:
%s`, thesis, tone, outline, text)
}

// BuildFidelityAuditPrompt checks the polished chapter against the original
// transcript.
func BuildFidelityAuditPrompt(original, polished string) string {
	return fmt.Sprintf(`Compare the polished chapter against the original transcript. List any place where the chapter changes the speaker's meaning, drops a point, or adds material not in the original. If it is faithful, say so.

Original transcript:
%s

Polished chapter:
%s`, original, polished)
}

// BuildReadinessAuditPrompt checks the polished chapter for publication
// readiness on its own terms.
func BuildReadinessAuditPrompt(polished string) string {
	return fmt.Sprintf(`Review the chapter below as a publisher's copy editor. Note any remaining issues with grammar, flow, repetition, or spoken-language artifacts that would block publication. If it is ready, say so.

Chapter:
%s`, polished)
}
