package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batch struct {
	changed, removed []string
}

type recorder struct {
	mu      sync.Mutex
	batches []batch
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) handle(_ context.Context, changed, removed []string) error {
	r.mu.Lock()
	r.batches = append(r.batches, batch{changed, removed})
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) batch {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a batch")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func startWatcher(t *testing.T, cfg Config, h Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	w := New(cfg, h)
	go func() { done <- w.Run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watcher stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func TestWatcher_ChangedAndRemoved(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.md")
	require.NoError(t, os.WriteFile(existing, []byte("# old\n"), 0644))

	rec := newRecorder()
	startWatcher(t, Config{Roots: []string{root}, Delay: 100 * time.Millisecond}, rec.handle)

	path := filepath.Join(root, "new.md")
	require.NoError(t, os.WriteFile(path, []byte("# new\n"), 0644))
	b := rec.wait(t)
	assert.Equal(t, []string{path}, b.changed)
	assert.Empty(t, b.removed)

	require.NoError(t, os.Remove(existing))
	b = rec.wait(t)
	assert.Empty(t, b.changed)
	assert.Equal(t, []string{existing}, b.removed)
}

func TestWatcher_NewDirectoryAndIgnore(t *testing.T) {
	root := t.TempDir()
	ignore := func(path string, _ bool) bool {
		return strings.HasSuffix(path, ".tmp") || filepath.Base(path) == "skip"
	}

	rec := newRecorder()
	startWatcher(t, Config{Roots: []string{root}, Delay: 100 * time.Millisecond, Ignore: ignore}, rec.handle)

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skip"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip", "a.md"), []byte("x"), 0644))

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0755))
	file := filepath.Join(sub, "b.md")
	require.NoError(t, os.WriteFile(file, []byte("# b\n"), 0644))

	b := rec.wait(t)
	assert.Contains(t, b.changed, file)
	for _, p := range b.changed {
		assert.NotContains(t, p, ".tmp")
		assert.NotContains(t, p, string(filepath.Separator)+"skip"+string(filepath.Separator))
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(Config{}, func(context.Context, []string, []string) error { return nil })
	assert.Equal(t, DefaultDelay, w.cfg.Delay)
	assert.False(t, w.cfg.Ignore("anything", false))
	assert.Equal(t, 0, w.Batches())
}

func TestWatcher_DirectoryMovedAway(t *testing.T) {
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(docs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "guide.md"), []byte("# guide\n"), 0644))

	// only .md files pass, so the directory name itself would be filtered
	ignore := func(path string, isDir bool) bool {
		return !isDir && filepath.Ext(path) != ".md"
	}

	rec := newRecorder()
	startWatcher(t, Config{Roots: []string{root}, Delay: 100 * time.Millisecond, Ignore: ignore}, rec.handle)

	require.NoError(t, os.Rename(docs, filepath.Join(t.TempDir(), "docs")))
	b := rec.wait(t)
	assert.Empty(t, b.changed)
	assert.Contains(t, b.removed, docs)
}
