package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Tracker records the content hash each file had when it was last
// chunked, so unchanged files can be skipped on the next run.
type Tracker struct {
	mu    sync.RWMutex
	state trackerState
}

type trackerState struct {
	Hashes    map[string]string    `json:"hashes"`     // path -> content hash
	ChunkedAt map[string]time.Time `json:"chunked_at"` // path -> chunk time
}

// NewTracker creates a new tracker.
func NewTracker() *Tracker {
	return &Tracker{
		state: trackerState{
			Hashes:    make(map[string]string),
			ChunkedAt: make(map[string]time.Time),
		},
	}
}

// HasHash reports whether path was chunked with the given hash.
func (t *Tracker) HasHash(path, hash string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	existing, ok := t.state.Hashes[path]
	return ok && existing == hash
}

// SetHash records a file hash.
func (t *Tracker) SetHash(path, hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Hashes[path] = hash
	t.state.ChunkedAt[path] = time.Now()
}

// GetHash returns the hash for a path.
func (t *Tracker) GetHash(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.state.Hashes[path]
	return h, ok
}

// Seed records hashes loaded from elsewhere, such as a previous SQLite
// output.
func (t *Tracker) Seed(hashes map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for path, h := range hashes {
		t.state.Hashes[path] = h
	}
}

// RemovePath stops tracking path and, when path was a directory, every
// file below it. It returns the paths that were tracked.
func (t *Tracker) RemovePath(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix := strings.TrimSuffix(path, string(filepath.Separator)) + string(filepath.Separator)
	var removed []string
	for p := range t.state.Hashes {
		if p == path || strings.HasPrefix(p, prefix) {
			removed = append(removed, p)
		}
	}
	for _, p := range removed {
		delete(t.state.Hashes, p)
		delete(t.state.ChunkedAt, p)
	}
	delete(t.state.ChunkedAt, path)
	sort.Strings(removed)
	return removed
}

// Paths returns all tracked paths, sorted.
func (t *Tracker) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.state.Hashes))
	for path := range t.state.Hashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Removed returns tracked paths that are not in currentPaths.
func (t *Tracker) Removed(currentPaths []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	current := make(map[string]struct{}, len(currentPaths))
	for _, path := range currentPaths {
		current[path] = struct{}{}
	}

	var removed []string
	for path := range t.state.Hashes {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	return removed
}

// Save writes the tracker state as JSON to path.
func (t *Tracker) Save(path string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load restores state saved by Save. A missing file is not an error.
func (t *Tracker) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var st trackerState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Hashes == nil {
		st.Hashes = make(map[string]string)
	}
	if st.ChunkedAt == nil {
		st.ChunkedAt = make(map[string]time.Time)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = st
	return nil
}
