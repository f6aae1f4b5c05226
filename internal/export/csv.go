// Package export flattens checkpoint files into CSV training rows.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/genqa/internal/checkpoint"
)

// QuoteSeparator joins a pair's supporting quotes into one CSV cell.
const QuoteSeparator = " | "

var header = []string{"file_path", "chunk_number", "qa_number", "question", "answer", "supporting_quotes"}

// Row is one question-answer pair addressed by its source document and
// position within it.
type Row struct {
	FilePath         string
	ChunkNumber      int
	QANumber         int
	Question         string
	Answer           string
	SupportingQuotes string
}

// FlattenCheckpoint yields one row per QA pair. Chunk and pair numbers
// are 1-based. A failed chunk keeps its chunk number but has no pairs,
// so it contributes no rows.
func FlattenCheckpoint(cp *checkpoint.Checkpoint) []Row {
	var rows []Row
	for i, chunk := range cp.Chunks {
		for j, pair := range chunk.QAPairs {
			rows = append(rows, Row{
				FilePath:         cp.SourceFilepath,
				ChunkNumber:      i + 1,
				QANumber:         j + 1,
				Question:         pair.Question,
				Answer:           pair.Answer,
				SupportingQuotes: strings.Join(pair.SupportingQuotes, QuoteSeparator),
			})
		}
	}
	return rows
}

// FlattenDir loads every *_qa.json checkpoint under dir in sorted
// order and flattens them. Unreadable files are skipped with a warning
// so one corrupt checkpoint cannot block an export.
func FlattenDir(dir string, log *slog.Logger) ([]Row, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %s is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*_qa.json"))
	if err != nil {
		return nil, fmt.Errorf("glob checkpoints: %w", err)
	}

	var rows []Row
	for _, path := range paths {
		cp, err := checkpoint.Load(path)
		if err != nil {
			log.Warn("skipping unreadable checkpoint", "path", path, "error", err)
			continue
		}
		rows = append(rows, FlattenCheckpoint(cp)...)
	}

	log.Info("flattened checkpoints", "files", len(paths), "rows", len(rows))
	return rows, nil
}

// WriteCSV writes the header followed by one record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.FilePath,
			strconv.Itoa(row.ChunkNumber),
			strconv.Itoa(row.QANumber),
			row.Question,
			row.Answer,
			row.SupportingQuotes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
