package index

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFileName is the tool-specific ignore file read next to .gitignore.
const IgnoreFileName = ".ricechunkignore"

// defaultIgnorePatterns are excluded from every directory walk.
var defaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"vendor",
	"__pycache__",
	"target",
	"*.pyc",
	".DS_Store",
}

// IgnoreFilter matches paths under a root against gitignore patterns.
type IgnoreFilter struct {
	root     string
	patterns []gitignore.Pattern
}

// NewIgnoreFilter builds the filter for root from the default patterns
// and, when readFiles is set, the root's .gitignore and .ricechunkignore.
func NewIgnoreFilter(root string, readFiles bool) *IgnoreFilter {
	f := &IgnoreFilter{root: root}

	for _, p := range defaultIgnorePatterns {
		f.patterns = append(f.patterns, gitignore.ParsePattern(p, nil))
	}

	if readFiles {
		f.load(filepath.Join(root, ".gitignore"))
		f.load(filepath.Join(root, IgnoreFileName))
	}

	return f
}

func (f *IgnoreFilter) load(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.patterns = append(f.patterns, gitignore.ParsePattern(line, nil))
	}
}

// ShouldIgnore reports whether path is excluded. Later patterns override
// earlier ones, so negations ("!keep.md") work as in git.
func (f *IgnoreFilter) ShouldIgnore(path string, isDir bool) bool {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	ignored := false
	for _, p := range f.patterns {
		switch p.Match(parts, isDir) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}
