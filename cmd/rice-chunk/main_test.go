package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricesearch/rice-chunk/internal/store"
)

const guide = "# Guide\n\nIntro.\n\n## Install\n\nRun make.\n\n## Usage\n\nCall it.\n"

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rice-chunk dev")
	assert.Contains(t, out, "commit: none")
}

func TestChunkCmd_JSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	writeFile(t, path, guide)

	out, errOut, err := execute(t, "chunk", "--budget", "4", "--unit", "lines", path)
	require.NoError(t, err, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	var rec struct {
		Path  string `json:"path"`
		Index int    `json:"index"`
		Core  string `json:"core"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, path, rec.Path)
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, "## Install\n\nRun make.\n\n", rec.Core)

	assert.Contains(t, errOut, "Chunked 1 of 1 files into 3 chunks")
}

func TestChunkCmd_JSONFileAndWindows(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "guide.md")
	writeFile(t, src, guide)
	outPath := filepath.Join(dir, "out", "chunks.json")

	_, errOut, err := execute(t, "chunk", "--quiet",
		"-b", "100", "--unit", "lines",
		"--format", "json", "-o", outPath, "--windows",
		filepath.Join(dir, "src"))
	require.NoError(t, err, errOut)
	assert.NotContains(t, errOut, "Chunked")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var windows []map[string]any
	require.NoError(t, json.Unmarshal(data, &windows))
	require.Len(t, windows, 1)
	assert.Contains(t, windows[0]["content"], "Run make.")
	assert.Contains(t, windows[0], "metadata")
}

func TestChunkCmd_SQLiteIncremental(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "a.md"), guide)
	writeFile(t, filepath.Join(src, "b.txt"), "alpha\n\nbeta\n")
	db := filepath.Join(dir, "chunks.db")

	args := []string{"chunk", "-b", "4", "--unit", "lines", "-f", "sqlite", "-o", db, "--incremental", "--prune", src}

	_, errOut, err := execute(t, args...)
	require.NoError(t, err, errOut)
	assert.Contains(t, errOut, "Chunked 2 of 2 files")

	// unchanged files are skipped on the second run
	_, errOut, err = execute(t, args...)
	require.NoError(t, err, errOut)
	assert.Contains(t, errOut, "Chunked 0 of 2 files")
	assert.Contains(t, errOut, "2 skipped")

	// a removed file is pruned
	require.NoError(t, os.Remove(filepath.Join(src, "b.txt")))
	_, errOut, err = execute(t, args...)
	require.NoError(t, err, errOut)

	sink, err := store.NewSQLiteSink(ctx, db)
	require.NoError(t, err)
	defer sink.Close()

	paths, err := sink.Paths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(src, "a.md")}, paths)

	st, err := sink.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Chunks)
}

func TestChunkCmd_StateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "one\n")
	state := filepath.Join(dir, "state", "hashes.json")

	args := []string{"chunk", "--incremental", "--state", state, path}

	out, errOut, err := execute(t, args...)
	require.NoError(t, err, errOut)
	assert.NotEmpty(t, out)
	assert.FileExists(t, state)

	out, errOut, err = execute(t, args...)
	require.NoError(t, err, errOut)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "1 skipped")
}

func TestChunkCmd_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, "chunk")
	assert.Error(t, err, "no paths")

	_, _, err = execute(t, "chunk", filepath.Join(dir, "missing"))
	assert.Error(t, err)

	_, _, err = execute(t, "chunk", "--unit", "words", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid unit")

	_, _, err = execute(t, "chunk", "--format", "sqlite", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite output requires an output path")

	// explicitly named files with an unknown language fail without --fallback
	bad := filepath.Join(dir, "data.xyz")
	writeFile(t, bad, "payload\n")
	_, errOut, err := execute(t, "chunk", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Contains(t, errOut, "UNSUPPORTED_LANGUAGE")

	out, errOut, err := execute(t, "chunk", "--fallback", bad)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, `"language":"plaintext"`)
}

func TestLanguagesCmd(t *testing.T) {
	out, _, err := execute(t, "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "LANGUAGE")
	assert.Contains(t, out, "python")
	assert.Contains(t, out, "markdown")

	out, _, err = execute(t, "languages", "--json")
	require.NoError(t, err)
	var rows []languageRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))

	byName := make(map[string]languageRow)
	for _, r := range rows {
		byName[r.Name] = r
	}
	assert.True(t, byName["plaintext"].Grammar)
	assert.Contains(t, byName["python"].Extensions, ".py")
}
