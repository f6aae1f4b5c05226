package commands

import (
	"io"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/dgallion1/genqa/internal/pipeline"
)

// progressDisplay renders one terminal progress bar per document while
// the batch runs. The pipeline is sequential, so hook calls never race.
type progressDisplay struct {
	pw       progress.Writer
	trackers map[string]*progress.Tracker
}

func newProgressDisplay(out io.Writer) *progressDisplay {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	go pw.Render()

	return &progressDisplay{
		pw:       pw,
		trackers: make(map[string]*progress.Tracker),
	}
}

// Hooks adapts the display to the pipeline callback points.
func (d *progressDisplay) Hooks() pipeline.ProgressHooks {
	return pipeline.ProgressHooks{
		FileStarted:  d.fileStarted,
		ChunkDone:    d.chunkDone,
		FileFinished: d.fileFinished,
	}
}

func (d *progressDisplay) fileStarted(path string, total, done int) {
	tracker := &progress.Tracker{
		Message: filepath.Base(path),
		Total:   int64(total),
		Units:   progress.UnitsDefault,
	}
	tracker.SetValue(int64(done))
	d.trackers[path] = tracker
	d.pw.AppendTracker(tracker)
}

func (d *progressDisplay) chunkDone(path string, done, total int) {
	if tracker := d.trackers[path]; tracker != nil {
		tracker.SetValue(int64(done))
	}
}

func (d *progressDisplay) fileFinished(report pipeline.FileReport) {
	tracker := d.trackers[report.Path]
	delete(d.trackers, report.Path)
	if tracker == nil {
		return
	}
	if report.Status == pipeline.FileCompleted {
		tracker.MarkAsDone()
	} else {
		tracker.MarkAsErrored()
	}
}

// Stop ends rendering and waits for the final frame to flush.
func (d *progressDisplay) Stop() {
	d.pw.Stop()
	for d.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
