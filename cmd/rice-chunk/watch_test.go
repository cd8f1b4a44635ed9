package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricesearch/rice-chunk/internal/config"
	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
	"github.com/ricesearch/rice-chunk/internal/store"
)

func newRechunker(t *testing.T, db string) (*rechunker, *store.SQLiteSink, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Chunk.Budget = 4
	cfg.Chunk.Unit = "lines"
	require.NoError(t, cfg.Validate())

	reg, err := cfg.Registry()
	require.NoError(t, err)
	ccfg, err := cfg.ChunkerConfig()
	require.NoError(t, err)
	chunker, err := index.NewChunker(ccfg, reg, logger.Discard())
	require.NoError(t, err)

	sink, err := store.NewSQLiteSink(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	var summary bytes.Buffer
	pipeline := index.NewPipeline(cfg.PipelineConfig(), chunker, sink, logger.Discard())
	return &rechunker{cfg: cfg, pipeline: pipeline, sink: sink, log: logger.Discard(), summary: &summary}, sink, &summary
}

func TestRechunker_Handle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	writeFile(t, path, guide)

	r, sink, summary := newRechunker(t, filepath.Join(dir, "chunks.db"))

	require.NoError(t, r.handle(ctx, []string{path}, nil))
	st, err := sink.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Documents: 1, Chunks: 3}, st)
	assert.Contains(t, summary.String(), "Chunked 1 of 1 files into 3 chunks")

	// an edited file replaces its chunks
	writeFile(t, path, "# Guide\n\nShort.\n")
	require.NoError(t, r.handle(ctx, []string{path}, nil))
	st, err = sink.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Documents: 1, Chunks: 1}, st)

	_, tracked := r.pipeline.Tracker().GetHash(path)
	assert.True(t, tracked)

	require.NoError(t, os.Remove(path))
	require.NoError(t, r.handle(ctx, nil, []string{path}))
	st, err = sink.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{}, st)
	_, tracked = r.pipeline.Tracker().GetHash(path)
	assert.False(t, tracked)
}

func TestWatchRoots(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.md"), guide)
	notes := filepath.Join(dir, "notes.xyz")
	writeFile(t, notes, "payload\n")

	r, _, _ := newRechunker(t, filepath.Join(dir, "chunks.db"))

	roots, ignored, err := watchRoots(r.pipeline, []string{src + string(filepath.Separator), notes})
	require.NoError(t, err)
	assert.Equal(t, []string{src, dir}, roots)

	assert.False(t, ignored(filepath.Join(src, "b.md"), false))
	assert.False(t, ignored(notes, false), "named files pass even without a known language")
	assert.True(t, ignored(filepath.Join(dir, "other.xyz"), false))
	assert.True(t, ignored(filepath.Join(dir, "sibling"), true))
	assert.True(t, ignored(filepath.Join(src, "node_modules"), true))

	_, _, err = watchRoots(r.pipeline, []string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestRunWatch_DirectoryMovedAway(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	docs := filepath.Join(src, "docs")
	writeFile(t, filepath.Join(docs, "guide.md"), guide)
	writeFile(t, filepath.Join(src, "keep.md"), guide)

	r, sink, _ := newRechunker(t, filepath.Join(dir, "chunks.db"))
	r.cfg.Index.WatchDelay = 100 * time.Millisecond
	_, err := r.pipeline.Run(ctx, []string{src})
	require.NoError(t, err)

	st, err := sink.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, store.Stats{Documents: 2, Chunks: 6}, st)

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- runWatch(watchCtx, r.cfg, r.pipeline, sink, []string{src}, nil, logger.Discard()) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// give the watcher time to register the tree
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.Rename(docs, filepath.Join(dir, "elsewhere")))

	require.Eventually(t, func() bool {
		st, err := sink.Stats(ctx)
		return err == nil && st == store.Stats{Documents: 1, Chunks: 3}
	}, 5*time.Second, 50*time.Millisecond)

	paths, err := sink.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(src, "keep.md")}, paths)
	assert.Equal(t, []string{filepath.Join(src, "keep.md")}, r.pipeline.Tracker().Paths())
}
