//go:build !cgo

package ast

import (
	"context"
	"log/slog"
)

// fallbackParser stands in for tree-sitter when cgo is disabled. It builds
// paragraph/line trees so code can still be chunked, without structure.
type fallbackParser struct {
	lines lineParser
}

func newCodeParser() Parser {
	slog.Warn("Tree-Sitter not available (CGO disabled), using line-based fallback parser")
	return &fallbackParser{}
}

func (p *fallbackParser) Parse(ctx context.Context, content []byte, language string) (*Node, error) {
	return p.lines.Parse(ctx, content, language)
}

func (p *fallbackParser) SupportsLanguage(language string) bool {
	return false
}

func (p *fallbackParser) Languages() []string {
	return nil
}

func grammarKinds(string) []string {
	return nil
}
