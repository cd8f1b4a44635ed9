package index

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rice-chunk/internal/pkg/errors"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
)

// Sink receives records in input order.
type Sink interface {
	Write(ctx context.Context, records []Record) error
}

// PipelineConfig configures the file pipeline.
type PipelineConfig struct {
	// Workers is the number of files chunked in parallel.
	Workers int

	// BatchSize is the number of records per sink write.
	BatchSize int

	// FailFast aborts the run on the first file error.
	FailFast bool

	// SkipUnchanged skips files whose content hash the tracker has seen.
	SkipUnchanged bool

	// IncludeHidden walks dot-directories and dot-files.
	IncludeHidden bool

	// NoIgnoreFiles skips reading .gitignore and .ricechunkignore when
	// walking. The built-in patterns still apply.
	NoIgnoreFiles bool
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:   4,
		BatchSize: DefaultBatchSize,
	}
}

// Pipeline orchestrates the file flow:
// paths → documents → records → sink
type Pipeline struct {
	cfg      PipelineConfig
	chunker  *Chunker
	sink     Sink
	tracker  *Tracker
	progress *ProgressTracker
	log      *logger.Logger
}

// NewPipeline creates a new pipeline. sink may be nil, in which case
// records are only returned in the result.
func NewPipeline(cfg PipelineConfig, chunker *Chunker, sink Sink, log *logger.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPipelineConfig().Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Pipeline{
		cfg:     cfg,
		chunker: chunker,
		sink:    sink,
		tracker: NewTracker(),
		log:     log,
	}
}

// Tracker returns the hash tracker used for SkipUnchanged.
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// OnProgress registers a progress callback.
func (p *Pipeline) OnProgress(cb ProgressCallback) {
	p.progress = NewProgressTracker(cb)
}

// Result summarises a run.
type Result struct {
	Files    int           `json:"files"`
	Chunked  int           `json:"chunked"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Chunks   int           `json:"chunks"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Errors   []FileError   `json:"errors,omitempty"`
	FileInfo []FileInfo    `json:"file_info,omitempty"`

	// Records holds every record in input order when the pipeline has no
	// sink.
	Records []Record `json:"-"`
}

// FileError represents an error for one file.
type FileError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FileInfo contains the outcome for one file.
type FileInfo struct {
	Path       string `json:"path"`
	Language   string `json:"language"`
	Hash       string `json:"hash,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"` // chunked, skipped, failed
}

// File statuses.
const (
	StatusChunked = "chunked"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

type fileResult struct {
	info    FileInfo
	size    int64
	records []Record
	err     error
}

// Run chunks every file named by paths, walking directories. Files are
// chunked concurrently but records reach the sink in input order.
// Per-file errors are collected in the result; with FailFast the first one
// aborts the run and is returned.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()

	files, err := p.Collect(paths)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Files:    len(files),
		FileInfo: make([]FileInfo, 0, len(files)),
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.processFile(gctx, path)
			p.progress.FileDone(len(files), path)
			if err := results[i].err; err != nil {
				if p.cfg.FailFast {
					return fmt.Errorf("%s: %w", path, err)
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	for _, r := range results {
		result.FileInfo = append(result.FileInfo, r.info)
		switch r.info.Status {
		case StatusSkipped:
			result.Skipped++
		case StatusFailed:
			result.Failed++
			result.Errors = append(result.Errors, FileError{
				Path:    r.info.Path,
				Code:    errors.CodeOf(r.err),
				Message: r.err.Error(),
			})
		default:
			result.Chunked++
			result.Bytes += r.size
			records = append(records, r.records...)
		}
	}
	result.Chunks = len(records)

	if p.sink == nil {
		result.Records = records
	} else if err := p.write(ctx, records); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.progress.Complete(result.Files)

	p.log.Info("Chunking complete",
		"files", result.Files,
		"chunked", result.Chunked,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)

	return result, nil
}

func (p *Pipeline) write(ctx context.Context, records []Record) error {
	written := 0
	for _, batch := range splitIntoBatches(records, p.cfg.BatchSize) {
		if err := p.sink.Write(ctx, batch); err != nil {
			return errors.Wrap(errors.CodeInternal, "failed to write records", err)
		}
		written += len(batch)
		p.progress.WriteStage(written, len(records))
	}
	return nil
}

// processFile reads and chunks one file. It never panics on bad input;
// every failure is reported in the result.
func (p *Pipeline) processFile(ctx context.Context, path string) fileResult {
	res := fileResult{info: FileInfo{Path: path}}
	fail := func(err error) fileResult {
		res.err = err
		res.info.Status = StatusFailed
		p.log.WithFile(path, res.info.Language).Warn("Failed to chunk file", "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(errors.Wrap(errors.CodeNotFound, "cannot stat file", err))
	}
	if info.Size() > MaxDocumentSize {
		return fail(errors.ValidationError(fmt.Sprintf("file size %d exceeds maximum of %d bytes", info.Size(), MaxDocumentSize)))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fail(errors.Wrap(errors.CodeInternal, "cannot read file", err))
	}

	if bytes.IndexByte(content, 0) >= 0 {
		p.log.WithFile(path, "").Debug("Skipping binary file")
		res.info.Status = StatusSkipped
		return res
	}

	lang := DetectLanguage(path, p.chunker.Registry())
	res.info.Language = lang
	doc := NewDocument(path, string(content), lang)
	res.info.Hash = doc.Hash

	if p.cfg.SkipUnchanged && p.tracker.HasHash(path, doc.Hash) {
		res.info.Status = StatusSkipped
		return res
	}

	records, err := p.chunker.ChunkDocument(ctx, doc)
	if err != nil {
		return fail(err)
	}
	if len(records) > 0 {
		res.info.Language = records[0].Language
	}

	p.tracker.SetHash(path, doc.Hash)
	res.records = records
	res.size = doc.Size
	res.info.ChunkCount = len(records)
	res.info.Status = StatusChunked
	return res
}

// Collect expands paths into the ordered list of files to chunk. Files
// named explicitly are always included; files found by walking a
// directory are included when their language is known, or always when
// the chunker falls back to plain text, unless hidden or matched by the
// root's ignore patterns. Duplicates are dropped.
func (p *Pipeline) Collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.Wrap(errors.CodeNotFound, fmt.Sprintf("path not found: %s", root), err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		ignore := NewIgnoreFilter(root, !p.cfg.NoIgnoreFiles)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			if d.IsDir() {
				if p.skip(ignore, path, true) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && !p.skip(ignore, path, false) && p.Chunkable(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, fmt.Sprintf("failed to walk %s", root), err)
		}
	}

	return files, nil
}

// skip reports whether a walked entry is hidden or ignored.
func (p *Pipeline) skip(ignore *IgnoreFilter, path string, isDir bool) bool {
	if !p.cfg.IncludeHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	return ignore.ShouldIgnore(path, isDir)
}

// Chunkable reports whether a file found by walking would be chunked: its
// language is known, or the chunker falls back to plain text.
func (p *Pipeline) Chunkable(path string) bool {
	return p.chunker.config.FallbackPlaintext || DetectLanguage(path, p.chunker.Registry()) != ""
}

// WatchFilter returns the predicate watch mode uses for paths under the
// directory roots: true for hidden, ignored, or unchunkable entries and
// for anything outside every root.
func (p *Pipeline) WatchFilter(roots []string) func(path string, isDir bool) bool {
	filters := make(map[string]*IgnoreFilter, len(roots))
	for _, root := range roots {
		filters[filepath.Clean(root)] = NewIgnoreFilter(root, !p.cfg.NoIgnoreFiles)
	}

	return func(path string, isDir bool) bool {
		for root, ignore := range filters {
			rel, err := filepath.Rel(root, path)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			if rel == "." {
				return false
			}
			if p.skip(ignore, path, isDir) {
				return true
			}
			return !isDir && !p.Chunkable(path)
		}
		return true
	}
}
