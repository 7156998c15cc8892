package paragraphs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MissingFileIsUnstarted(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), "paragraphs.json"))
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paragraphs.json")
	edited := "An edited paragraph."
	rating := 9

	in := []Record{
		{Index: 0, Original: "First.", Prompt: "p0", EvaluationStatus: StatusPending},
		{Index: 1, Original: "Second.", Prompt: "p1", Edited: &edited, EvaluationStatus: StatusPassed, Rating: &rating},
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].Edited)
	assert.Equal(t, StatusPending, out[0].EvaluationStatus)
	require.NotNil(t, out[1].Edited)
	assert.Equal(t, edited, *out[1].Edited)
	require.NotNil(t, out[1].Rating)
	assert.Equal(t, 9, *out[1].Rating)
}

func TestStore_SavedFileIsAlwaysParseable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paragraphs.json")
	require.NoError(t, Save(path, []Record{{Index: 0, Original: "One."}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	// Null fields are serialized explicitly so partial progress is visible.
	assert.Contains(t, raw[0], "edited")
	assert.Contains(t, raw[0], "rating")
}

func TestStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paragraphs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestRecord_NeedsEdit(t *testing.T) {
	r := Record{}
	assert.True(t, r.NeedsEdit())

	r.SetEdited(ErrorMarkerPrefix + "model timeout")
	assert.True(t, r.NeedsEdit())
	assert.Empty(t, r.EditedText())

	r.SetEdited("Clean text.")
	assert.False(t, r.NeedsEdit())
	assert.Equal(t, "Clean text.", r.EditedText())
}

func TestAllEditedAllPassed(t *testing.T) {
	assert.False(t, AllEdited(nil))
	assert.False(t, AllPassed(nil))

	done := "done"
	records := []Record{
		{Index: 0, Edited: &done, EvaluationStatus: StatusPassed},
		{Index: 1, EvaluationStatus: StatusPending},
	}
	assert.False(t, AllEdited(records))
	assert.False(t, AllPassed(records))

	records[1].SetEdited("also done")
	records[1].EvaluationStatus = StatusPassed
	assert.True(t, AllEdited(records))
	assert.True(t, AllPassed(records))
}
