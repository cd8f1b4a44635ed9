package index

import (
	"sync"
)

// DefaultBatchSize is the number of records handed to a sink per write.
const DefaultBatchSize = 256

// splitIntoBatches splits items into batches of the given size.
func splitIntoBatches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}

	var batches [][]T
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		batches = append(batches, items[i:end])
	}

	return batches
}

// Progress stages.
const (
	StageChunking = "chunking"
	StageWriting  = "writing"
	StageComplete = "complete"
)

// ProgressCallback is called with pipeline progress updates.
type ProgressCallback func(Progress)

// Progress represents pipeline progress.
type Progress struct {
	Stage       string  `json:"stage"`
	Current     int     `json:"current"`
	Total       int     `json:"total"`
	Percent     float64 `json:"percent"`
	CurrentFile string  `json:"current_file,omitempty"`
}

// ProgressTracker serialises progress callbacks from concurrent workers.
type ProgressTracker struct {
	callback ProgressCallback
	mu       sync.Mutex
	done     int
}

// NewProgressTracker creates a new progress tracker. A nil callback makes
// every update a no-op.
func NewProgressTracker(callback ProgressCallback) *ProgressTracker {
	return &ProgressTracker{
		callback: callback,
	}
}

// Update reports p.
func (t *ProgressTracker) Update(p Progress) {
	if t == nil || t.callback == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.report(p)
}

func (t *ProgressTracker) report(p Progress) {
	if p.Total > 0 && p.Percent == 0 {
		p.Percent = float64(p.Current) / float64(p.Total) * 100
	}
	t.callback(p)
}

// FileDone counts one finished file out of total.
func (t *ProgressTracker) FileDone(total int, file string) {
	if t == nil || t.callback == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	t.report(Progress{
		Stage:       StageChunking,
		Current:     t.done,
		Total:       total,
		CurrentFile: file,
	})
}

// WriteStage reports sink progress in records.
func (t *ProgressTracker) WriteStage(current, total int) {
	t.Update(Progress{
		Stage:   StageWriting,
		Current: current,
		Total:   total,
	})
}

// Complete reports completion.
func (t *ProgressTracker) Complete(files int) {
	t.Update(Progress{
		Stage:   StageComplete,
		Current: files,
		Total:   files,
		Percent: 100,
	})
}
