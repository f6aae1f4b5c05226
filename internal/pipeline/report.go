package pipeline

// FileStatus classifies the outcome of one document in a batch.
type FileStatus int

const (
	// FileCompleted means every chunk has a persisted result. Individual
	// chunks may still carry a recorded generation error.
	FileCompleted FileStatus = iota
	// FileSkipped means a prior run already completed the document.
	FileSkipped
	// FileFailed means the document produced no usable results.
	FileFailed
	// FileAborted means processing stopped partway. The checkpoint holds
	// everything persisted so far and the document can be resumed.
	FileAborted
)

func (s FileStatus) String() string {
	switch s {
	case FileCompleted:
		return "completed"
	case FileSkipped:
		return "skipped"
	case FileFailed:
		return "failed"
	case FileAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// FileReport describes what happened to one input document.
type FileReport struct {
	Path        string
	Status      FileStatus
	TotalChunks int
	// Processed counts chunks with a persisted result, including those
	// carried over from prior runs.
	Processed int
	// FailedChunks counts persisted results that record a generation
	// error.
	FailedChunks int
	Err          error
}

// BatchReport aggregates the per-document reports of one run.
type BatchReport struct {
	Files []FileReport
}

func (b *BatchReport) count(status FileStatus) int {
	n := 0
	for _, f := range b.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Completed counts documents fully processed by this run.
func (b *BatchReport) Completed() int { return b.count(FileCompleted) }

// Skipped counts documents that were already complete.
func (b *BatchReport) Skipped() int { return b.count(FileSkipped) }

// Failed counts documents that produced no usable results.
func (b *BatchReport) Failed() int { return b.count(FileFailed) }

// Aborted counts documents stopped partway, typically by cancellation.
func (b *BatchReport) Aborted() int { return b.count(FileAborted) }
