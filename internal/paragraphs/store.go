package paragraphs

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mlcook/chapterforge/internal/artifacts"
)

// Load reads the paragraph array from path. A missing file returns (nil, nil):
// the pipeline treats it as unstarted. A present but unparseable file is an
// error, since it means a writer did not go through Save.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

// Save writes the paragraph array atomically (temp file + rename) so a crash
// mid-write never leaves a half-written paragraphs.json behind.
func Save(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding paragraphs: %w", err)
	}
	if err := artifacts.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
