package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ricesearch/rice-chunk/internal/ast"
	"github.com/ricesearch/rice-chunk/internal/chunk"
	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/pkg/errors"
	"github.com/ricesearch/rice-chunk/internal/profile"
)

// Tool names.
const (
	ToolChunkCode     = "chunk_code"
	ToolChunkFile     = "chunk_file"
	ToolListLanguages = "list_languages"
)

var toolNames = []string{ToolChunkCode, ToolChunkFile, ToolListLanguages}

// chunkingOptions are the per-call overrides shared by the chunk tools.
func chunkingOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("budget",
			mcp.Description("Maximum chunk size in the chosen unit (default: server setting)"),
		),
		mcp.WithNumber("overlap",
			mcp.Description("Amount of the previous chunk repeated ahead of each chunk, in the chosen unit"),
		),
		mcp.WithString("unit",
			mcp.Description("Size unit: lines, tokens, bytes or nws (non-whitespace characters)"),
			mcp.Enum("lines", "tokens", "bytes", "nws"),
		),
		mcp.WithString("style",
			mcp.Description("Ancestor preamble style: kind ('class_definition Foo') or signature (first line of each container)"),
			mcp.Enum("kind", "signature"),
		),
		mcp.WithBoolean("count_ancestors",
			mcp.Description("Charge the ancestor preamble against the budget"),
		),
		mcp.WithString("template",
			mcp.Description("Metadata template: none, default, coderagbench-repoeval or coderagbench-swebench-lite"),
		),
		mcp.WithBoolean("expand",
			mcp.Description("Prefix each chunk with a fenced header holding the file path and ancestors"),
		),
		mcp.WithBoolean("windows",
			mcp.Description("Return chunks in the template's code window shape instead of full records"),
		),
	}
}

func chunkCodeTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Split source code into size-bounded chunks along syntax boundaries. Each chunk carries the chain of enclosing classes and functions as a preamble."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source text to chunk"),
		),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Language name, e.g. python, java, csharp, typescript, go (see list_languages)"),
		),
		mcp.WithString("path",
			mcp.Description("File path recorded in chunk metadata (default: 'input')"),
		),
	}
	return mcp.NewTool(ToolChunkCode, append(opts, chunkingOptions()...)...)
}

func chunkFileTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Read a file and split it into size-bounded chunks along syntax boundaries. The language is detected from the extension unless given."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File to chunk, absolute or relative to the server root"),
		),
		mcp.WithString("language",
			mcp.Description("Language name overriding extension detection"),
		),
	}
	return mcp.NewTool(ToolChunkFile, append(opts, chunkingOptions()...)...)
}

func listLanguagesTool() mcp.Tool {
	return mcp.NewTool(ToolListLanguages,
		mcp.WithDescription("List the languages that can be chunked, with their aliases, file extensions and whether a grammar is available."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// chunker builds a chunker from the base configuration and the call's
// overrides.
func (s *Server) chunker(req mcp.CallToolRequest) (*index.Chunker, bool, error) {
	cfg := s.base
	args := req.GetArguments()

	if _, ok := args["budget"]; ok {
		cfg.Options.Budget = req.GetInt("budget", cfg.Options.Budget)
	}
	if _, ok := args["overlap"]; ok {
		cfg.Options.Overlap = req.GetInt("overlap", cfg.Options.Overlap)
	}
	if unit := req.GetString("unit", ""); unit != "" {
		u, err := chunk.ParseUnit(unit)
		if err != nil {
			return nil, false, err
		}
		if cfg.Options.Metric != nil && cfg.Options.Metric.Unit() != u {
			cfg.Options.Metric = nil
		}
		cfg.Options.Unit = u
	}
	if style := req.GetString("style", ""); style != "" {
		cfg.Options.Style = chunk.Style(style)
	}
	cfg.Options.CountAncestors = req.GetBool("count_ancestors", cfg.Options.CountAncestors)
	if tmpl := req.GetString("template", ""); tmpl != "" {
		cfg.Template = index.Template(tmpl)
	}
	cfg.Expand = req.GetBool("expand", cfg.Expand)

	c, err := index.NewChunker(cfg, s.registry, s.log)
	if err != nil {
		return nil, false, err
	}
	return c, req.GetBool("windows", false), nil
}

// chunkResponse is the JSON body returned by the chunk tools.
type chunkResponse struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Count    int    `json:"count"`
	Chunks   []any  `json:"chunks"`
}

func (s *Server) chunkDocument(ctx context.Context, req mcp.CallToolRequest, doc *index.Document) (*mcp.CallToolResult, error) {
	c, windows, err := s.chunker(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, err := c.ChunkDocument(ctx, doc)
	if err != nil {
		s.log.WithFile(doc.Path, doc.Language).WithError(err).Warn("Chunking failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := chunkResponse{
		Path:     doc.Path,
		Language: doc.Language,
		Count:    len(records),
		Chunks:   make([]any, len(records)),
	}
	if len(records) > 0 {
		resp.Language = records[0].Language
	}
	for i := range records {
		if windows {
			resp.Chunks[i] = records[i].CodeWindow()
		} else {
			resp.Chunks[i] = records[i]
		}
	}
	return jsonResult(resp)
}

func (s *Server) handleChunkCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}
	language, err := req.RequireString("language")
	if err != nil || strings.TrimSpace(language) == "" {
		return mcp.NewToolResultError("language is required"), nil
	}
	path := req.GetString("path", "input")

	doc := index.NewDocument(path, code, language)
	return s.chunkDocument(ctx, req, doc)
}

func (s *Server) handleChunkFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil || path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	full, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := os.Stat(full)
	if err != nil {
		return mcp.NewToolResultError(errors.NotFoundError(path).Error()), nil
	}
	if info.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is a directory", path)), nil
	}
	if info.Size() > index.MaxDocumentSize {
		return mcp.NewToolResultError(fmt.Sprintf("%s is too large (%d bytes, max %d)", path, info.Size(), index.MaxDocumentSize)), nil
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	language := req.GetString("language", "")
	if language == "" {
		language = index.DetectLanguage(full, s.registry)
	}
	doc := index.NewDocument(path, string(content), language)
	return s.chunkDocument(ctx, req, doc)
}

// resolve maps a tool path onto the filesystem. With a root set, paths
// must stay inside it.
func (s *Server) resolve(path string) (string, error) {
	if s.root == "" {
		return filepath.Clean(path), nil
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, full)
	}
	full = filepath.Clean(full)
	if !within(s.root, full) {
		return "", errors.ValidationError(fmt.Sprintf("path %s is outside the server root", path))
	}

	// symlinks inside the root must not lead out of it; missing paths are
	// left for the caller to report
	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		return full, nil
	}
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		root = s.root
	}
	if !within(root, target) {
		return "", errors.ValidationError(fmt.Sprintf("path %s is outside the server root", path))
	}
	return full, nil
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// languageInfo describes one chunkable language.
type languageInfo struct {
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	Parser     string   `json:"parser"`
	Grammar    bool     `json:"grammar"`
}

func (s *Server) handleListLanguages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parser := ast.NewParser()
	var langs []languageInfo
	for _, name := range s.registry.Languages() {
		p, err := s.registry.Lookup(name)
		if err != nil {
			continue
		}
		langs = append(langs, describe(p, parser))
	}
	return jsonResult(map[string]any{"languages": langs})
}

func describe(p *profile.Profile, parser ast.Parser) languageInfo {
	return languageInfo{
		Name:       p.Name(),
		Aliases:    p.Aliases(),
		Extensions: p.Extensions(),
		Parser:     p.Parser(),
		Grammar:    parser.SupportsLanguage(p.Parser()),
	}
}

// jsonResult encodes v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(strings.TrimSuffix(buf.String(), "\n")), nil
}
