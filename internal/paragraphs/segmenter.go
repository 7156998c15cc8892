package paragraphs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mlcook/chapterforge/internal/llm"
	"github.com/mlcook/chapterforge/internal/prompts"
)

// Segmenter turns a raw transcript into paragraphs by asking a language model
// where each paragraph break belongs, one chunk of sentences at a time.
type Segmenter struct {
	client llm.Client
	logger *slog.Logger

	// ChunkSize is how many sentences are offered per break decision.
	ChunkSize int

	// ContextParagraphs is how many already-formed paragraphs accompany
	// each chunk as context.
	ContextParagraphs int

	// MinBreakIndex guards against stub paragraphs: a break index below it
	// is ignored while sentences remain beyond the chunk.
	MinBreakIndex int
}

// NewSegmenter creates a segmenter with the given tuning. Zero values fall
// back to the pipeline defaults.
func NewSegmenter(client llm.Client, chunkSize, contextParagraphs, minBreakIndex int, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize <= 0 {
		chunkSize = 25
	}
	if contextParagraphs < 0 {
		contextParagraphs = 1
	}
	if minBreakIndex <= 0 {
		minBreakIndex = 3
	}
	return &Segmenter{
		client:            client,
		logger:            logger,
		ChunkSize:         chunkSize,
		ContextParagraphs: contextParagraphs,
		MinBreakIndex:     minBreakIndex,
	}
}

// Segment cleans the raw transcript, splits it into sentences, and groups the
// sentences into paragraphs. A model failure on any chunk falls back to taking
// the whole chunk as one paragraph; only quota exhaustion aborts the run.
func (s *Segmenter) Segment(ctx context.Context, raw string) ([]string, error) {
	sentences := SplitSentences(CleanTranscript(raw))
	if len(sentences) == 0 {
		return nil, nil
	}

	var paragraphs []string
	for i := 0; i < len(sentences); {
		end := i + s.ChunkSize
		if end > len(sentences) {
			end = len(sentences)
		}
		chunk := sentences[i:end]

		idx, err := s.breakIndex(ctx, paragraphs, chunk)
		if err != nil {
			return nil, err
		}

		advance := idx
		// A break this early would form a stub paragraph; take the whole
		// chunk instead while the transcript is not yet exhausted.
		if idx < s.MinBreakIndex && i+idx < len(sentences) {
			advance = len(chunk)
		}
		if advance <= 0 || advance > len(chunk) {
			advance = len(chunk)
		}

		paragraphs = append(paragraphs, strings.Join(chunk[:advance], " "))
		i += advance
	}
	return paragraphs, nil
}

// breakIndex asks the model for the break position within chunk. A transport
// or parse failure falls back to the chunk length.
func (s *Segmenter) breakIndex(ctx context.Context, formed []string, chunk []string) (int, error) {
	recent := formed
	if len(recent) > s.ContextParagraphs {
		recent = recent[len(recent)-s.ContextParagraphs:]
	}

	reply, err := s.client.SubmitPrompt(ctx, prompts.BuildBreakIndexPrompt(recent, chunk))
	if err != nil {
		if llm.IsQuota(err) {
			return 0, err
		}
		s.logger.Warn("paragraph break request failed, taking whole chunk",
			slog.Int("chunk_len", len(chunk)),
			slog.String("error", err.Error()))
		return len(chunk), nil
	}

	idx, err := prompts.ParseBreakIndex(reply, len(chunk))
	if err != nil {
		s.logger.Warn("unparseable break reply, taking whole chunk",
			slog.Int("chunk_len", len(chunk)),
			slog.String("error", err.Error()))
		return len(chunk), nil
	}

	return idx, nil
}

// CleanTranscript joins soft line-wraps, collapses whitespace runs, and
// removes immediate phrase repetitions ("X X" -> "X").
func CleanTranscript(raw string) string {
	words := strings.Fields(raw)
	words = dedupePhrases(words)
	return strings.Join(words, " ")
}

// maxPhraseLen bounds how long a repeated phrase can be for dedupe purposes.
const maxPhraseLen = 5

// dedupePhrases drops the second copy of any immediately repeated phrase of
// up to maxPhraseLen words. Longest phrases win, so "a b a b" collapses to
// "a b" rather than being left alone.
func dedupePhrases(words []string) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		matched := 0
		for n := maxPhraseLen; n >= 1; n-- {
			if i+2*n > len(words) {
				continue
			}
			if phrasesEqual(words[i:i+n], words[i+n:i+2*n]) {
				matched = n
				break
			}
		}
		if matched > 0 {
			out = append(out, words[i:i+matched]...)
			i += 2 * matched
			continue
		}
		out = append(out, words[i])
		i++
	}
	// A collapse can expose a new adjacency ("a a a" -> "a a"), so run to
	// a fixed point.
	if len(out) < len(words) {
		return dedupePhrases(out)
	}
	return out
}

func phrasesEqual(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitSentences splits on '.', '?', or '!' followed by whitespace (or end of
// text), keeping the terminator with its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '?' && c != '!' {
			continue
		}
		atEnd := i == len(text)-1
		if !atEnd && text[i+1] != ' ' && text[i+1] != '\t' && text[i+1] != '\n' {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
