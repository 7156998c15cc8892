package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEditorPrompt(t *testing.T) {
	t.Run("standard substitutes all fields", func(t *testing.T) {
		out := BuildEditorPrompt(PositionStandard, "PREV", "TARGET", "NEXT", "warm")
		assert.Contains(t, out, "PREV")
		assert.Contains(t, out, "TARGET")
		assert.Contains(t, out, "NEXT")
		assert.Contains(t, out, "warm")
		assert.NotContains(t, out, "{previous}")
		assert.NotContains(t, out, "{target}")
		assert.NotContains(t, out, "{next}")
		assert.NotContains(t, out, "{speaker_tone}")
	})

	t.Run("first has no previous placeholder", func(t *testing.T) {
		out := BuildEditorPrompt(PositionFirst, "", "TARGET", "NEXT", "")
		assert.Contains(t, out, "opening paragraph")
		assert.Contains(t, out, DefaultTone)
	})

	t.Run("last has no next placeholder", func(t *testing.T) {
		out := BuildEditorPrompt(PositionLast, "PREV", "TARGET", "", "warm")
		assert.Contains(t, out, "closing paragraph")
		assert.Contains(t, out, "PREV")
	})
}

func TestParseBreakIndex(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		chunkLen int
		want     int
		wantErr  bool
	}{
		{"bare integer", "14", 25, 14, false},
		{"integer in prose", "The paragraph should break at index 7.", 25, 7, false},
		{"clamped to chunk length", "99", 25, 25, false},
		{"equal to chunk length", "25", 25, 25, false},
		{"zero", "0", 25, 0, false},
		{"no integer", "I cannot decide.", 25, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBreakIndex(tt.reply, tt.chunkLen)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildBreakIndexPrompt(t *testing.T) {
	out := BuildBreakIndexPrompt([]string{"Previous paragraph."}, []string{"One.", "Two.", "Three."})
	assert.Contains(t, out, "0: One.")
	assert.Contains(t, out, "2: Three.")
	assert.Contains(t, out, "Previous paragraph.")
	assert.Contains(t, out, "single integer")
}

func TestParseEvaluation(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		reply := "Rating: 5\nCRITIQUE FOR REDO: The edit loses the rhetorical question in the middle."
		ev, err := ParseEvaluation(reply)
		require.NoError(t, err)
		assert.Equal(t, 5, ev.Rating)
		assert.Equal(t, "The edit loses the rhetorical question in the middle.", ev.Critique)
	})

	t.Run("passing rating with chatter", func(t *testing.T) {
		reply := "Here is my review.\nRating: 9\nCRITIQUE FOR REDO: None needed."
		ev, err := ParseEvaluation(reply)
		require.NoError(t, err)
		assert.Equal(t, 9, ev.Rating)
	})

	t.Run("rating of ten", func(t *testing.T) {
		ev, err := ParseEvaluation("Rating: 10\nCRITIQUE FOR REDO: none")
		require.NoError(t, err)
		assert.Equal(t, 10, ev.Rating)
	})

	t.Run("missing rating marker", func(t *testing.T) {
		_, err := ParseEvaluation("Looks fine to me.")
		require.Error(t, err)
	})

	t.Run("rating line without number", func(t *testing.T) {
		_, err := ParseEvaluation("Rating: none\nCRITIQUE FOR REDO: n/a")
		require.Error(t, err)
	})
}

func TestBuildThesisDecisionPrompt(t *testing.T) {
	out := BuildThesisDecisionPrompt([]string{"Thesis A.", "Thesis B.", "Thesis C."})
	assert.Contains(t, out, "Candidate 1:\nThesis A.")
	assert.Contains(t, out, "Candidate 3:\nThesis C.")
}

func TestBuildRegenerationPrompt(t *testing.T) {
	out := BuildRegenerationPrompt("EDIT PROMPT", "Too terse.")
	assert.True(t, strings.HasPrefix(out, "EDIT PROMPT"))
	assert.Contains(t, out, "Too terse.")
}
