// Package pipeline drives documents through conversion, chunking, QA
// generation, and checkpointed persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/genqa/internal/checkpoint"
	"github.com/dgallion1/genqa/internal/chunker"
	"github.com/dgallion1/genqa/internal/config"
	"github.com/dgallion1/genqa/internal/convert"
	"github.com/dgallion1/genqa/internal/llm"
	"github.com/dgallion1/genqa/internal/qagen"
)

// ProgressHooks observes the pipeline without coupling it to any UI.
// Nil fields are skipped. FileStarted fires only for documents with
// work to do; ChunkDone fires after each chunk result is persisted.
type ProgressHooks struct {
	FileStarted  func(path string, total, done int)
	ChunkDone    func(path string, done, total int)
	FileFinished func(report FileReport)
}

// Runner processes documents sequentially, persisting progress after
// every chunk so an interrupted run resumes where it stopped.
type Runner struct {
	cfg    config.Config
	client llm.Client
	gen    *qagen.Generator
	store  *checkpoint.Store
	log    *slog.Logger
	hooks  ProgressHooks
}

func NewRunner(cfg config.Config, client llm.Client, log *slog.Logger, hooks ProgressHooks) *Runner {
	return &Runner{
		cfg:    cfg,
		client: client,
		gen: qagen.NewGenerator(client, qagen.Config{
			MaxQuestions:    cfg.MaxQuestions,
			Temperature:     cfg.Temperature,
			MaxRetries:      cfg.MaxRetries,
			TemperatureStep: cfg.TemperatureStep,
		}, log),
		store: checkpoint.NewStore(cfg.OutputDir),
		log:   log,
		hooks: hooks,
	}
}

// Run processes each path in order. Documents are isolated, so one
// failing never stops the others. Once the context is cancelled the
// remaining paths are reported as aborted without being touched.
func (r *Runner) Run(ctx context.Context, paths []string) BatchReport {
	var batch BatchReport
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			batch.Files = append(batch.Files, FileReport{Path: path, Status: FileAborted, Err: err})
			continue
		}
		batch.Files = append(batch.Files, r.ProcessFile(ctx, path))
	}

	r.log.Info("batch finished",
		"completed", batch.Completed(),
		"skipped", batch.Skipped(),
		"failed", batch.Failed(),
		"aborted", batch.Aborted(),
	)
	return batch
}

// ProcessFile runs one document end to end and reports the outcome.
func (r *Runner) ProcessFile(ctx context.Context, path string) FileReport {
	log := r.log.With("file", path)
	report := FileReport{Path: path}

	// Phase 1: convert to markdown.
	text, err := convert.File(path)
	if err != nil {
		return r.fail(log, report, fmt.Errorf("convert document: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return r.fail(log, report, errors.New("no text extracted"))
	}

	// Phase 2: chunk against the model tokenizer. A counting failure
	// would make chunk boundaries irreproducible on resume, so it fails
	// the document instead of silently changing them.
	count, countErr := r.tokenCounter(ctx)
	chunks := chunker.Split(text, r.cfg.ChunkSize, count)
	if err := countErr(); err != nil {
		return r.fail(log, report, fmt.Errorf("count tokens: %w", err))
	}
	report.TotalChunks = len(chunks)

	// Phase 3: load prior progress.
	cp, status, err := r.store.LoadOrInit(path, text, len(chunks), r.cfg.Overwrite)
	if err != nil {
		return r.fail(log, report, fmt.Errorf("load checkpoint: %w", err))
	}
	report.Processed = len(cp.Chunks)
	for _, c := range cp.Chunks {
		if c.Error != "" {
			report.FailedChunks++
		}
	}

	switch status {
	case checkpoint.Complete:
		log.Info("already processed", "chunks", len(chunks))
		report.Status = FileSkipped
		return r.finish(report)
	case checkpoint.Resumed:
		log.Info("resuming document", "done", len(cp.Chunks), "total", len(chunks))
		r.warnStaleResume(log, cp, chunks)
	default:
		log.Info("chunked document", "chunks", len(chunks))
	}

	// Phase 4: generate, persisting after every chunk.
	if r.hooks.FileStarted != nil {
		r.hooks.FileStarted(path, len(chunks), len(cp.Chunks))
	}
	for i := len(cp.Chunks); i < len(chunks); i++ {
		if err := ctx.Err(); err != nil {
			return r.abort(log, report, err)
		}

		res := r.gen.ProcessChunk(ctx, chunks[i])
		if res.Error != "" && ctx.Err() != nil {
			// A cancelled attempt is not a chunk failure. Leave the
			// chunk unpersisted so a resume retries it.
			return r.abort(log, report, ctx.Err())
		}
		if res.Error != "" {
			report.FailedChunks++
			log.Warn("chunk failed after retries", "chunk", i)
		}

		if err := r.store.Append(cp, res); err != nil {
			return r.abort(log, report, fmt.Errorf("persist chunk %d: %w", i, err))
		}
		report.Processed++
		if r.hooks.ChunkDone != nil {
			r.hooks.ChunkDone(path, report.Processed, len(chunks))
		}
	}

	report.Status = FileCompleted
	log.Info("document complete", "chunks", len(chunks), "failed_chunks", report.FailedChunks)
	return r.finish(report)
}

// tokenCounter adapts the client tokenizer to the chunker. The first
// counting error is captured and later calls fall back to the word
// estimate, which keeps Split deterministic while the caller decides
// what to do about the failure.
func (r *Runner) tokenCounter(ctx context.Context) (chunker.CountFunc, func() error) {
	var firstErr error
	count := func(text string) int {
		if firstErr == nil {
			n, err := r.client.CountTokens(ctx, text)
			if err == nil {
				return n
			}
			firstErr = err
		}
		return chunker.EstimateTokens(text)
	}
	return count, func() error { return firstErr }
}

// warnStaleResume flags a checkpoint whose persisted prefix no longer
// lines up with the current chunking, which happens when the source
// document or the chunk size changed between runs. The prefix is kept
// either way.
func (r *Runner) warnStaleResume(log *slog.Logger, cp *checkpoint.Checkpoint, chunks []string) {
	if len(cp.Chunks) > len(chunks) {
		log.Warn("checkpoint holds more results than the current chunking produces",
			"persisted", len(cp.Chunks), "chunks", len(chunks))
	}
	n := min(len(cp.Chunks), len(chunks))
	for i := 0; i < n; i++ {
		if cp.Chunks[i].ChunkText != chunks[i] {
			log.Warn("persisted chunk no longer matches the current chunking", "chunk", i)
			return
		}
	}
}

func (r *Runner) fail(log *slog.Logger, report FileReport, err error) FileReport {
	report.Status = FileFailed
	report.Err = err
	log.Error("document failed", "error", err)
	return r.finish(report)
}

func (r *Runner) abort(log *slog.Logger, report FileReport, err error) FileReport {
	report.Status = FileAborted
	report.Err = err
	log.Warn("document aborted", "done", report.Processed, "total", report.TotalChunks, "error", err)
	return r.finish(report)
}

func (r *Runner) finish(report FileReport) FileReport {
	if r.hooks.FileFinished != nil {
		r.hooks.FileFinished(report)
	}
	return report
}
