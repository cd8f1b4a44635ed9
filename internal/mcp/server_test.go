package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ricesearch/rice-chunk/internal/chunk"
	"github.com/ricesearch/rice-chunk/internal/index"
)

const guide = "# Guide\n\nIntro.\n\n## Install\n\nRun make.\n\n## Usage\n\nCall it.\n"

type toolResult struct {
	Text    string
	IsError bool
}

func newTestServer(t *testing.T, root string) *server.MCPServer {
	t.Helper()
	srv := NewServer(ServerConfig{
		Chunker: index.ChunkerConfig{
			Options: chunk.Options{Budget: 4, Unit: chunk.UnitLines},
		},
		Root: root,
	})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	return srv.MCPServer()
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// callTool invokes a tool through the JSON-RPC entry point.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()

	msg := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}))

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw := mustMarshal(t, msg)
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, raw)
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result.Content) == 0 {
		t.Fatalf("no content in result: %s", raw)
	}
	return toolResult{Text: resp.Result.Content[0].Text, IsError: resp.Result.IsError}
}

func decodeChunks(t *testing.T, res toolResult) chunkResponse {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error: %s", res.Text)
	}
	var out chunkResponse
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		t.Fatalf("decode result: %v\n%s", err, res.Text)
	}
	return out
}

func TestToolsList(t *testing.T) {
	srv := newTestServer(t, "")

	msg := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/list",
	}))

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(mustMarshal(t, msg), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := make(map[string]bool)
	for _, tool := range resp.Result.Tools {
		got[tool.Name] = true
	}
	for _, name := range toolNames {
		if !got[name] {
			t.Errorf("tools/list missing %s", name)
		}
	}
}

func TestChunkCodeTool(t *testing.T) {
	srv := newTestServer(t, "")

	out := decodeChunks(t, callTool(t, srv, ToolChunkCode, map[string]any{
		"code":     guide,
		"language": "Markdown",
		"path":     "docs/guide.md",
	}))

	if out.Count != 3 || len(out.Chunks) != 3 {
		t.Fatalf("count = %d (%d chunks), want 3", out.Count, len(out.Chunks))
	}
	if out.Language != "markdown" {
		t.Errorf("language = %q, want markdown", out.Language)
	}
	second, _ := out.Chunks[1].(map[string]any)
	if second["core"] != "## Install\n\nRun make.\n\n" {
		t.Errorf("chunk 1 core = %q", second["core"])
	}
	if second["path"] != "docs/guide.md" {
		t.Errorf("chunk 1 path = %v", second["path"])
	}
}

func TestChunkCodeTool_Overrides(t *testing.T) {
	srv := newTestServer(t, "")

	out := decodeChunks(t, callTool(t, srv, ToolChunkCode, map[string]any{
		"code":     guide,
		"language": "markdown",
		"budget":   100,
		"expand":   true,
		"windows":  true,
	}))

	if out.Count != 1 {
		t.Fatalf("count = %d, want 1", out.Count)
	}
	win, _ := out.Chunks[0].(map[string]any)
	content, _ := win["content"].(string)
	if !strings.HasPrefix(content, "'''\ninput\n") {
		t.Errorf("expanded content = %q, want header with default path", content)
	}
	if _, ok := win["metadata"]; !ok {
		t.Errorf("code window missing metadata: %v", win)
	}
}

func TestChunkCodeTool_Errors(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing code", map[string]any{"language": "python"}, "code is required"},
		{"missing language", map[string]any{"code": "x = 1\n"}, "language is required"},
		{"unknown language", map[string]any{"code": "x", "language": "cobol"}, "UNSUPPORTED_LANGUAGE"},
		{"bad unit", map[string]any{"code": "x", "language": "plaintext", "unit": "words"}, "VALIDATION_ERROR"},
		{"bad template", map[string]any{"code": "x", "language": "plaintext", "template": "xml"}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, srv, ToolChunkCode, tt.args)
			if !res.IsError {
				t.Fatalf("expected error result, got %s", res.Text)
			}
			if !strings.Contains(res.Text, tt.want) {
				t.Errorf("error = %q, want it to contain %q", res.Text, tt.want)
			}
		})
	}
}

func TestChunkFileTool(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "guide.md"), []byte(guide), 0644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, root)

	out := decodeChunks(t, callTool(t, srv, ToolChunkFile, map[string]any{
		"path": "docs/guide.md",
	}))
	if out.Count != 3 {
		t.Errorf("count = %d, want 3", out.Count)
	}
	if out.Language != "markdown" {
		t.Errorf("language = %q, want markdown", out.Language)
	}

	out = decodeChunks(t, callTool(t, srv, ToolChunkFile, map[string]any{
		"path":     "docs/guide.md",
		"language": "plaintext",
		"budget":   100,
	}))
	if out.Count != 1 || out.Language != "plaintext" {
		t.Errorf("override: count = %d language = %q, want 1 plaintext", out.Count, out.Language)
	}
}

func TestChunkFileTool_Errors(t *testing.T) {
	root := t.TempDir()
	srv := newTestServer(t, root)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", "nope.py", "NOT_FOUND"},
		{"directory", ".", "is a directory"},
		{"outside root", "../etc/passwd", "outside the server root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, srv, ToolChunkFile, map[string]any{"path": tt.path})
			if !res.IsError {
				t.Fatalf("expected error result, got %s", res.Text)
			}
			if !strings.Contains(res.Text, tt.want) {
				t.Errorf("error = %q, want it to contain %q", res.Text, tt.want)
			}
		})
	}
}

func TestChunkFileTool_SymlinkOutsideRoot(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.md")
	if err := os.WriteFile(secret, []byte("# Secret\n"), 0644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "inside.md"), []byte("# Inside\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "link.md")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "inside.md"), filepath.Join(root, "alias.md")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	srv := newTestServer(t, root)

	for _, path := range []string{"link.md", "linkdir/secret.md"} {
		res := callTool(t, srv, ToolChunkFile, map[string]any{"path": path})
		if !res.IsError || !strings.Contains(res.Text, "outside the server root") {
			t.Errorf("chunk_file(%s) = %q, want outside the server root", path, res.Text)
		}
	}

	res := callTool(t, srv, ToolChunkFile, map[string]any{"path": "alias.md"})
	if res.IsError {
		t.Errorf("chunk_file(alias.md) error = %s", res.Text)
	}
}

func TestListLanguagesTool(t *testing.T) {
	srv := newTestServer(t, "")

	res := callTool(t, srv, ToolListLanguages, map[string]any{})
	if res.IsError {
		t.Fatalf("tool returned error: %s", res.Text)
	}

	var out struct {
		Languages []languageInfo `json:"languages"`
	}
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	byName := make(map[string]languageInfo)
	for _, l := range out.Languages {
		byName[l.Name] = l
	}
	for _, name := range []string{"python", "java", "csharp", "typescript", "markdown", "plaintext"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("list_languages missing %s", name)
		}
	}
	if !byName["markdown"].Grammar || !byName["plaintext"].Grammar {
		t.Errorf("markdown and plaintext parsers must always be available: %+v", byName)
	}
}
