// Package checkpoint persists per-document QA generation progress as a JSON
// file that is rewritten atomically after every chunk, so an interrupted run
// resumes exactly where it stopped.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/genqa/internal/qagen"
)

// Checkpoint is the durable record for one source document. The JSON field
// names are stable; result files from earlier runs must keep loading.
type Checkpoint struct {
	SourceFilepath string              `json:"source_filepath"`
	MarkdownText   string              `json:"markdown_text"`
	Chunks         []qagen.ChunkResult `json:"chunks"`

	path string
}

// Load reads a checkpoint file.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", filepath.Base(path), err)
	}
	if cp.Chunks == nil {
		cp.Chunks = []qagen.ChunkResult{}
	}
	cp.path = path
	return &cp, nil
}

// save marshals cp and atomically replaces path: write a temp file in the
// same directory, then rename. Readers never observe a partial file.
func save(path string, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
