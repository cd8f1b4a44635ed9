package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ricesearch/rice-chunk/internal/config"
	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
	"github.com/ricesearch/rice-chunk/internal/store"
	"github.com/ricesearch/rice-chunk/internal/watch"
)

// rechunker applies watcher batches to the pipeline and sink.
type rechunker struct {
	cfg      *config.Config
	pipeline *index.Pipeline
	sink     store.Sink
	log      *logger.Logger
	summary  io.Writer // nil when quiet
}

func (r *rechunker) handle(ctx context.Context, changed, removed []string) error {
	if len(removed) > 0 {
		// removed paths may be directories; both deletes cover their files
		if db, ok := r.sink.(*store.SQLiteSink); ok {
			if err := db.DeleteDocuments(ctx, removed...); err != nil {
				return err
			}
		}
		dropped := 0
		for _, path := range removed {
			dropped += len(r.pipeline.Tracker().RemovePath(path))
		}
		r.log.Info("Removed files", "paths", len(removed), "tracked", dropped)
	}

	if len(changed) > 0 {
		if db, ok := r.sink.(*store.SQLiteSink); ok {
			db.BeginRun()
		}
		result, err := r.pipeline.Run(ctx, changed)
		if err != nil {
			return err
		}
		if r.summary != nil {
			printSummary(r.summary, result)
		}
	}

	if r.cfg.Index.StateFile != "" {
		if err := r.pipeline.Tracker().Save(r.cfg.Index.StateFile); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
	}
	return nil
}

// watchRoots returns the directories to watch for args and the filter
// deciding which paths under them are chunked. Named files are watched
// through their parent directory and always pass the filter.
func watchRoots(pipeline *index.Pipeline, args []string) ([]string, watch.Filter, error) {
	var dirs, roots []string
	files := make(map[string]bool)
	seen := make(map[string]bool)

	// paths keep the form given on the command line so records written
	// by the watcher match those of the initial run
	for _, arg := range args {
		path := filepath.Clean(arg)
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, err
		}
		root := path
		if info.IsDir() {
			dirs = append(dirs, path)
		} else {
			files[path] = true
			root = filepath.Dir(path)
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	ignoredInDirs := pipeline.WatchFilter(dirs)
	filter := func(path string, isDir bool) bool {
		if files[path] {
			return false
		}
		return ignoredInDirs(path, isDir)
	}
	return roots, filter, nil
}

// runWatch re-chunks files under args as they change until ctx is done.
func runWatch(ctx context.Context, cfg *config.Config, pipeline *index.Pipeline, sink store.Sink, args []string, summary io.Writer, log *logger.Logger) error {
	roots, filter, err := watchRoots(pipeline, args)
	if err != nil {
		return err
	}

	r := &rechunker{cfg: cfg, pipeline: pipeline, sink: sink, log: log, summary: summary}
	w := watch.New(watch.Config{
		Roots:  roots,
		Delay:  cfg.Index.WatchDelay,
		Ignore: filter,
		Logger: log,
	}, r.handle)
	return w.Run(ctx, nil)
}
