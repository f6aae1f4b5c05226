package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/genqa/internal/checkpoint"
	"github.com/dgallion1/genqa/internal/config"
	"github.com/dgallion1/genqa/internal/export"
	"github.com/dgallion1/genqa/internal/llm"
	"github.com/dgallion1/genqa/internal/qagen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const literalPair = `[{"question":"Q1","answer":"A1","supporting_quotes":["S1"]}]`

// The mock client counts whitespace words as tokens, so with a chunk
// limit of 8 each six-word paragraph below becomes its own chunk.
const threeChunkDoc = "alpha one two three four five.\n\n" +
	"beta one two three four five.\n\n" +
	"gamma one two three four five."

const fiveChunkDoc = threeChunkDoc + "\n\n" +
	"delta one two three four five.\n\n" +
	"epsilon one two three four five."

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ModelURL:        "http://localhost:8080",
		RequestTimeout:  time.Minute,
		NCtx:            16384,
		ChunkSize:       8,
		MaxQuestions:    3,
		MaxRetries:      3,
		Temperature:     0,
		TemperatureStep: 0.1,
		OutputDir:       t.TempDir(),
		LogLevel:        "info",
	}
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadCheckpoint(t *testing.T, cfg config.Config, path string) *checkpoint.Checkpoint {
	t.Helper()
	cp, err := checkpoint.Load(checkpoint.NewStore(cfg.OutputDir).PathFor(path))
	require.NoError(t, err)
	return cp
}

func TestRunner_ProcessFile_EndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)
	mock := llm.NewMock(llm.MockReply{Content: literalPair})

	report := NewRunner(cfg, mock, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileCompleted, report.Status)
	assert.Equal(t, 3, report.TotalChunks)
	assert.Equal(t, 3, report.Processed)
	assert.Zero(t, report.FailedChunks)
	require.NoError(t, report.Err)

	// One model call per chunk, in document order.
	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].User, "alpha one two three four five.")
	assert.Contains(t, calls[1].User, "beta one two three four five.")
	assert.Contains(t, calls[2].User, "gamma one two three four five.")

	cp := loadCheckpoint(t, cfg, path)
	assert.Equal(t, path, cp.SourceFilepath)
	assert.Equal(t, threeChunkDoc, cp.MarkdownText)
	require.Len(t, cp.Chunks, 3)
	for _, chunk := range cp.Chunks {
		require.Len(t, chunk.QAPairs, 1)
		assert.Equal(t, "Q1", chunk.QAPairs[0].Question)
		assert.Equal(t, "A1", chunk.QAPairs[0].Answer)
		assert.Equal(t, []string{"S1"}, chunk.QAPairs[0].SupportingQuotes)
	}

	// Flattening the output yields one CSV row per chunk.
	rows, err := export.FlattenDir(cfg.OutputDir, testLogger())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, path, row.FilePath)
		assert.Equal(t, i+1, row.ChunkNumber)
		assert.Equal(t, 1, row.QANumber)
		assert.Equal(t, "S1", row.SupportingQuotes)
	}
}

func TestRunner_ProcessFile_FailureIsolation(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, fiveChunkDoc)

	good := llm.MockReply{Content: literalPair}
	bad := llm.MockReply{Content: `{"not": "an array"}`}
	mock := llm.NewMock(good, good, bad, bad, bad, good, good)

	report := NewRunner(cfg, mock, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileCompleted, report.Status)
	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 1, report.FailedChunks)

	// Chunk 2 burned all three attempts; the rest took one each.
	require.Len(t, mock.Calls(), 7)

	cp := loadCheckpoint(t, cfg, path)
	require.Len(t, cp.Chunks, 5)
	for i, chunk := range cp.Chunks {
		if i == 2 {
			assert.NotEmpty(t, chunk.Error)
			assert.NotNil(t, chunk.QAPairs)
			assert.Empty(t, chunk.QAPairs)
		} else {
			assert.Empty(t, chunk.Error)
			assert.Len(t, chunk.QAPairs, 1)
		}
	}
}

func TestRunner_ProcessFile_ResumptionMakesNoModelCalls(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	first := llm.NewMock(llm.MockReply{Content: literalPair})
	report := NewRunner(cfg, first, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)
	require.Equal(t, FileCompleted, report.Status)

	second := llm.NewMock(llm.MockReply{Content: literalPair})
	report = NewRunner(cfg, second, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileSkipped, report.Status)
	assert.Equal(t, 3, report.Processed)
	assert.Empty(t, second.Calls())
}

func TestRunner_ProcessFile_ResumesAfterCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mock := llm.NewMock(llm.MockReply{Content: literalPair})
	hooks := ProgressHooks{
		ChunkDone: func(_ string, done, total int) {
			if done == 2 {
				cancel()
			}
		},
	}

	report := NewRunner(cfg, mock, testLogger(), hooks).ProcessFile(ctx, path)
	assert.Equal(t, FileAborted, report.Status)
	assert.Equal(t, 2, report.Processed)
	assert.ErrorIs(t, report.Err, context.Canceled)
	assert.Len(t, loadCheckpoint(t, cfg, path).Chunks, 2)

	// A later run picks up at chunk 2 and only generates the remainder.
	resumeMock := llm.NewMock(llm.MockReply{Content: literalPair})
	var started [][2]int
	resumeHooks := ProgressHooks{
		FileStarted: func(_ string, total, done int) { started = append(started, [2]int{total, done}) },
	}
	report = NewRunner(cfg, resumeMock, testLogger(), resumeHooks).ProcessFile(context.Background(), path)

	assert.Equal(t, FileCompleted, report.Status)
	assert.Equal(t, 3, report.Processed)
	require.Len(t, resumeMock.Calls(), 1)
	assert.Contains(t, resumeMock.Calls()[0].User, "gamma one two three four five.")
	assert.Equal(t, [][2]int{{3, 2}}, started)
}

// cancelDuringCall cancels the context from inside the nth model call,
// as if SIGINT arrived mid-request.
type cancelDuringCall struct {
	*llm.Mock
	cancel context.CancelFunc
	onCall int
	calls  int
}

func (c *cancelDuringCall) ChatCompletion(ctx context.Context, req llm.ChatRequest) (string, error) {
	c.calls++
	if c.calls == c.onCall {
		c.cancel()
		return "", ctx.Err()
	}
	return c.Mock.ChatCompletion(ctx, req)
}

func TestRunner_ProcessFile_CancelDuringGenerationNotPersisted(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancelDuringCall{
		Mock:   llm.NewMock(llm.MockReply{Content: literalPair}),
		cancel: cancel,
		onCall: 2,
	}

	report := NewRunner(cfg, client, testLogger(), ProgressHooks{}).ProcessFile(ctx, path)
	assert.Equal(t, FileAborted, report.Status)
	assert.Equal(t, 1, report.Processed)
	assert.ErrorIs(t, report.Err, context.Canceled)

	// Only the completed chunk is on disk; the interrupted one was not
	// recorded as a failure.
	cp := loadCheckpoint(t, cfg, path)
	require.Len(t, cp.Chunks, 1)
	assert.Empty(t, cp.Chunks[0].Error)
}

func TestRunner_ProcessFile_OverwriteReprocesses(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	first := llm.NewMock(llm.MockReply{Content: literalPair})
	report := NewRunner(cfg, first, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)
	require.Equal(t, FileCompleted, report.Status)

	cfg.Overwrite = true
	second := llm.NewMock(llm.MockReply{Content: `[{"question":"Q2","answer":"A2","supporting_quotes":[]}]`})
	report = NewRunner(cfg, second, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileCompleted, report.Status)
	require.Len(t, second.Calls(), 3)

	cp := loadCheckpoint(t, cfg, path)
	require.Len(t, cp.Chunks, 3)
	assert.Equal(t, "Q2", cp.Chunks[0].QAPairs[0].Question)
}

func TestRunner_ProgressHooks(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	type event struct {
		kind  string
		done  int
		total int
	}
	var events []event
	hooks := ProgressHooks{
		FileStarted: func(_ string, total, done int) {
			events = append(events, event{"started", done, total})
		},
		ChunkDone: func(_ string, done, total int) {
			events = append(events, event{"chunk", done, total})
		},
		FileFinished: func(r FileReport) {
			events = append(events, event{"finished:" + r.Status.String(), r.Processed, r.TotalChunks})
		},
	}

	mock := llm.NewMock(llm.MockReply{Content: literalPair})
	NewRunner(cfg, mock, testLogger(), hooks).ProcessFile(context.Background(), path)

	want := []event{
		{"started", 0, 3},
		{"chunk", 1, 3},
		{"chunk", 2, 3},
		{"chunk", 3, 3},
		{"finished:completed", 3, 3},
	}
	assert.Equal(t, want, events)

	// A second pass skips the document without starting it.
	events = nil
	NewRunner(cfg, mock, testLogger(), hooks).ProcessFile(context.Background(), path)
	assert.Equal(t, []event{{"finished:skipped", 3, 3}}, events)
}

func TestRunner_ProcessFile_WarnsOnStaleResume(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	// Persist one result whose text does not match the current chunking.
	store := checkpoint.NewStore(cfg.OutputDir)
	cp, _, err := store.LoadOrInit(path, "other text", 3, false)
	require.NoError(t, err)
	require.NoError(t, store.Append(cp, qagen.ChunkResult{ChunkText: "stale text", QAPairs: []qagen.QAPair{}}))

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	mock := llm.NewMock(llm.MockReply{Content: literalPair})
	report := NewRunner(cfg, mock, log, ProgressHooks{}).ProcessFile(context.Background(), path)

	// The stale prefix is preserved and the remaining chunks are generated.
	assert.Equal(t, FileCompleted, report.Status)
	assert.Contains(t, buf.String(), "no longer matches")
	require.Len(t, mock.Calls(), 2)
}

func TestRunner_ProcessFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "doc.xyz")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	mock := llm.NewMock()
	report := NewRunner(cfg, mock, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileFailed, report.Status)
	assert.ErrorContains(t, report.Err, "unsupported file extension")
	assert.Empty(t, mock.Calls())
}

func TestRunner_ProcessFile_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	report := NewRunner(cfg, llm.NewMock(), testLogger(), ProgressHooks{}).
		ProcessFile(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))

	assert.Equal(t, FileFailed, report.Status)
	assert.ErrorContains(t, report.Err, "convert document")
}

func TestRunner_ProcessFile_EmptyDocument(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, "   \n\n  \n")

	report := NewRunner(cfg, llm.NewMock(), testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileFailed, report.Status)
	assert.ErrorContains(t, report.Err, "no text extracted")
}

type failingTokenizer struct {
	*llm.Mock
}

func (f *failingTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	return 0, errors.New("tokenize endpoint down")
}

func TestRunner_ProcessFile_TokenCountFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)
	client := &failingTokenizer{Mock: llm.NewMock()}

	report := NewRunner(cfg, client, testLogger(), ProgressHooks{}).ProcessFile(context.Background(), path)

	assert.Equal(t, FileFailed, report.Status)
	assert.ErrorContains(t, report.Err, "count tokens")
	assert.Empty(t, client.Calls())
}

func TestRunner_Run_IsolatesFailures(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	dir := t.TempDir()
	good1 := filepath.Join(dir, "good1.txt")
	require.NoError(t, os.WriteFile(good1, []byte(threeChunkDoc), 0o644))
	bad := filepath.Join(dir, "image.xyz")
	require.NoError(t, os.WriteFile(bad, []byte("binary"), 0o644))
	good2 := filepath.Join(dir, "good2.txt")
	require.NoError(t, os.WriteFile(good2, []byte("short document."), 0o644))

	mock := llm.NewMock(llm.MockReply{Content: literalPair})
	batch := NewRunner(cfg, mock, testLogger(), ProgressHooks{}).
		Run(context.Background(), []string{good1, bad, good2})

	require.Len(t, batch.Files, 3)
	assert.Equal(t, FileCompleted, batch.Files[0].Status)
	assert.Equal(t, FileFailed, batch.Files[1].Status)
	assert.Equal(t, FileCompleted, batch.Files[2].Status)
	assert.Equal(t, 2, batch.Completed())
	assert.Equal(t, 1, batch.Failed())
	assert.Zero(t, batch.Skipped())
	assert.Zero(t, batch.Aborted())
}

func TestRunner_Run_CancelledContextAbortsRemaining(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	path := writeDoc(t, threeChunkDoc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := llm.NewMock()
	batch := NewRunner(cfg, mock, testLogger(), ProgressHooks{}).Run(ctx, []string{path, path})

	require.Len(t, batch.Files, 2)
	assert.Equal(t, 2, batch.Aborted())
	assert.Empty(t, mock.Calls())
}
