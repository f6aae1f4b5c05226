package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/genqa/internal/qagen"
)

// Status reports how LoadOrInit obtained a checkpoint.
type Status int

const (
	// Fresh means no prior progress exists; nothing is written until the
	// first Append.
	Fresh Status = iota
	// Resumed means partial progress was loaded from disk.
	Resumed
	// Complete means every chunk already has a persisted result.
	Complete
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Resumed:
		return "resumed"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Store reads and writes checkpoints under one output directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// PathFor returns the checkpoint path for an input document:
// <dir>/<input stem>_qa.json.
func (s *Store) PathFor(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(s.dir, stem+"_qa.json")
}

// LoadOrInit returns the checkpoint to continue from. With no prior file,
// or with overwrite set, it returns a fresh in-memory checkpoint. A prior
// file whose result count equals totalChunks is Complete; fewer results
// mean Resumed. A prior file that cannot be parsed is an error unless
// overwrite is set.
func (s *Store) LoadOrInit(inputPath, markdownText string, totalChunks int, overwrite bool) (*Checkpoint, Status, error) {
	path := s.PathFor(inputPath)

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			cp, err := Load(path)
			if err != nil {
				return nil, Fresh, err
			}
			if len(cp.Chunks) == totalChunks {
				return cp, Complete, nil
			}
			return cp, Resumed, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, Fresh, fmt.Errorf("stat checkpoint: %w", err)
		}
	}

	return &Checkpoint{
		SourceFilepath: inputPath,
		MarkdownText:   markdownText,
		Chunks:         []qagen.ChunkResult{},
		path:           path,
	}, Fresh, nil
}

// Append records exactly one more chunk result and atomically rewrites the
// whole file. On error the in-memory checkpoint keeps the appended result
// but the file is unchanged.
func (s *Store) Append(cp *Checkpoint, result qagen.ChunkResult) error {
	if cp.path == "" {
		return fmt.Errorf("checkpoint has no backing path")
	}
	cp.Chunks = append(cp.Chunks, result)
	return save(cp.path, cp)
}
