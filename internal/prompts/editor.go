package prompts

import (
	"strconv"
	"strings"
)

// Position selects the editor template by where the paragraph sits in the
// transcript.
type Position int

const (
	PositionFirst Position = iota
	PositionStandard
	PositionLast
)

// DefaultTone is used when metadata carries no speaker tone yet.
const DefaultTone = "neutral"

// editorFirstTemplate opens the chapter; there is no preceding paragraph.
const editorFirstTemplate = `You are editing the opening paragraph of a transcribed talk into polished written prose.

Speaker tone: {speaker_tone}

The paragraph that follows this one (for context, do not edit it):
{next}

Rewrite the paragraph below into clean, chapter-ready prose. Preserve the speaker's meaning, voice, and tone. Remove filler words, false starts, and spoken-language artifacts. Do not add content, do not summarize, and do not change the order of ideas. Reply with the rewritten paragraph only.

Paragraph to edit:
{target}`

// editorStandardTemplate is the general mid-transcript template.
const editorStandardTemplate = `You are editing one paragraph of a transcribed talk into polished written prose.

Speaker tone: {speaker_tone}

The paragraph before this one (for context, do not edit it):
{previous}

The paragraph after this one (for context, do not edit it):
{next}

Rewrite the paragraph below into clean, chapter-ready prose. Preserve the speaker's meaning, voice, and tone. Remove filler words, false starts, and spoken-language artifacts. Do not add content, do not summarize, and do not change the order of ideas. Reply with the rewritten paragraph only.

Paragraph to edit:
{target}`

// editorLastTemplate closes the chapter; there is no following paragraph.
const editorLastTemplate = `You are editing the closing paragraph of a transcribed talk into polished written prose.

Speaker tone: {speaker_tone}

The paragraph before this one (for context, do not edit it):
{previous}

Rewrite the paragraph below into clean, chapter-ready prose. Preserve the speaker's meaning, voice, and tone. Remove filler words, false starts, and spoken-language artifacts. Do not add content, do not summarize, and do not change the order of ideas. Reply with the rewritten paragraph only.

Paragraph to edit:
{target}`

// BuildEditorPrompt renders the position-appropriate editor template with the
// paragraph, its neighbors, and the speaker tone substituted in.
func BuildEditorPrompt(pos Position, previous, target, next, tone string) string {
	if tone == "" {
		tone = DefaultTone
	}

	var tmpl string
	switch pos {
	case PositionFirst:
		tmpl = editorFirstTemplate
	case PositionLast:
		tmpl = editorLastTemplate
	default:
		tmpl = editorStandardTemplate
	}

	return strings.NewReplacer(
		"{previous}", previous,
		"{target}", target,
		"{next}", next,
		"{speaker_tone}", tone,
	).Replace(tmpl)
}

// BuildBreakIndexPrompt asks at which zero-based sentence index in the chunk a
// new paragraph should begin. The reply is parsed with ParseBreakIndex.
func BuildBreakIndexPrompt(recentParagraphs []string, sentences []string) string {
	var b strings.Builder

	b.WriteString("You are segmenting a transcript into paragraphs.\n\n")
	if len(recentParagraphs) > 0 {
		b.WriteString("The most recent paragraph(s) already formed:\n")
		for _, p := range recentParagraphs {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Here are the next sentences, numbered from 0:\n")
	for i, s := range sentences {
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		b.WriteString(s)
		b.WriteString("\n")
	}

	b.WriteString("\nAt which zero-based index should a new paragraph begin? Reply with a single integer and nothing else.")
	return b.String()
}

// ParseBreakIndex extracts the first integer from the model's reply and clamps
// it to [0, chunkLen]. It returns an error when no integer is present.
func ParseBreakIndex(reply string, chunkLen int) (int, error) {
	start := -1
	for i, r := range reply {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, &ParseError{Reply: reply, Want: "an integer break index"}
	}

	end := start
	for end < len(reply) && reply[end] >= '0' && reply[end] <= '9' {
		end++
	}

	n, err := strconv.Atoi(reply[start:end])
	if err != nil {
		return 0, &ParseError{Reply: reply, Want: "an integer break index"}
	}
	if n < 0 {
		n = 0
	}
	if n > chunkLen {
		n = chunkLen
	}
	return n, nil
}

// ParseError reports a model reply that did not match the expected shape.
type ParseError struct {
	Reply string
	Want  string
}

func (e *ParseError) Error() string {
	reply := e.Reply
	if len(reply) > 120 {
		reply = reply[:120] + "..."
	}
	return "expected " + e.Want + " in model reply: " + strconv.Quote(reply)
}
