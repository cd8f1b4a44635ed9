// Package watch re-chunks files as they change on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
)

// DefaultDelay is how long the watcher waits for events to settle before
// handing a batch to the handler.
const DefaultDelay = 500 * time.Millisecond

// Handler receives a settled batch: files created or written, and paths
// removed or renamed away. A removed path may name a directory, and may
// name a file the filter would have excluded. Both lists are sorted.
type Handler func(ctx context.Context, changed, removed []string) error

// Filter reports whether a path should be ignored.
type Filter func(path string, isDir bool) bool

// Config configures a watcher.
type Config struct {
	// Roots are the directories watched, recursively.
	Roots []string
	Delay time.Duration
	// Ignore excludes paths from watching and from batches.
	Ignore Filter
	Logger *logger.Logger
}

// Watcher batches file system events under a set of roots.
type Watcher struct {
	cfg     Config
	handler Handler
	log     *logger.Logger

	pending map[string]struct{}
	batches int
}

// New creates a watcher.
func New(cfg Config, handler Handler) *Watcher {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Ignore == nil {
		cfg.Ignore = func(string, bool) bool { return false }
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		log:     cfg.Logger.WithComponent("watcher"),
		pending: make(map[string]struct{}),
	}
}

// Run watches until ctx is cancelled. Handler errors are logged and do
// not stop the watcher. The ready channel, if not nil, is closed once
// every root is being watched.
func (w *Watcher) Run(ctx context.Context, ready chan<- struct{}) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	for _, root := range w.cfg.Roots {
		if err := w.addTree(fsWatcher, root); err != nil {
			return err
		}
	}
	if ready != nil {
		close(ready)
	}
	w.log.Info("Watching for changes", "roots", len(w.cfg.Roots))

	timer := time.NewTimer(w.cfg.Delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event, fsWatcher) {
				timer.Reset(w.cfg.Delay)
			}
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// Batches returns the number of batches handed to the handler.
func (w *Watcher) Batches() int {
	return w.batches
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(fsWatcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("Error walking path", "path", path, "error", err)
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.cfg.Ignore(path, true) {
			return filepath.SkipDir
		}
		return fsWatcher.Add(path)
	})
}

// handleEvent records an event and reports whether it was kept.
func (w *Watcher) handleEvent(event fsnotify.Event, fsWatcher *fsnotify.Watcher) bool {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.cfg.Ignore(path, true) {
				return false
			}
			// files created before the watch was added are picked up
			// by walking the new directory
			if err := w.addTree(fsWatcher, path); err != nil {
				w.log.Warn("Failed to watch directory", "path", path, "error", err)
			}
			_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err == nil && d.Type().IsRegular() && !w.cfg.Ignore(p, false) {
					w.pending[p] = struct{}{}
				}
				return nil
			})
			return true
		}
	}

	// a removed path may have been a directory, which no longer can be
	// told apart from a file, so removals bypass the filter
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.pending[path] = struct{}{}
		return true
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if w.cfg.Ignore(path, false) {
		return false
	}
	w.pending[path] = struct{}{}
	return true
}

// flush hands the pending paths to the handler, split by whether they
// still exist.
func (w *Watcher) flush(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}

	var changed, removed []string
	for path := range w.pending {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			removed = append(removed, path)
		case err == nil && info.Mode().IsRegular() && !w.cfg.Ignore(path, false):
			changed = append(changed, path)
		}
	}
	w.pending = make(map[string]struct{})
	if len(changed) == 0 && len(removed) == 0 {
		return
	}
	sort.Strings(changed)
	sort.Strings(removed)

	w.batches++
	w.log.Info("Processing batch", "changed", len(changed), "removed", len(removed))
	if err := w.handler(ctx, changed, removed); err != nil {
		w.log.Error("Failed to process batch", "error", err)
	}
}
