// Package ast builds the syntax trees the chunker walks: tree-sitter trees
// for code, heading sections for markdown, and paragraph/line trees for
// plain text.
package ast

import (
	"context"
	"sort"
	"strings"

	"github.com/ricesearch/rice-chunk/internal/chunk"
	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Node represents a parsed syntax node. Byte offsets are half-open and
// lines are 1-based.
type Node struct {
	Type      string  `json:"type"`           // function_definition, section, line, ...
	Name      string  `json:"name,omitempty"` // resolved name, e.g. a heading title
	Field     string  `json:"field,omitempty"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Children  []*Node `json:"children,omitempty"`
}

var (
	_ chunk.SyntaxNode = (*Node)(nil)
	_ chunk.FieldNode  = (*Node)(nil)
	_ chunk.NamedNode  = (*Node)(nil)
)

func (n *Node) Kind() string     { return n.Type }
func (n *Node) StartByte() int   { return n.Start }
func (n *Node) EndByte() int     { return n.End }
func (n *Node) ChildCount() int  { return len(n.Children) }
func (n *Node) NodeName() string { return n.Name }

func (n *Node) Child(i int) chunk.SyntaxNode {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

func (n *Node) ChildByField(name string) chunk.SyntaxNode {
	for _, c := range n.Children {
		if c.Field == name {
			return c
		}
	}
	return nil
}

func (n *Node) FieldNameForChild(i int) string {
	if i < 0 || i >= len(n.Children) {
		return ""
	}
	return n.Children[i].Field
}

// Walk visits n and its descendants depth-first, stopping early when fn
// returns false.
func Walk(n *Node, fn func(*Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil || !fn(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// CountErrors returns the number of parser error-recovery nodes in n.
func CountErrors(n *Node) int {
	count := 0
	Walk(n, func(c *Node) bool {
		if c.Type == "ERROR" {
			count++
		}
		return true
	})
	return count
}

// Parser builds syntax trees.
type Parser interface {
	// Parse returns the root node for content in the given language.
	Parse(ctx context.Context, content []byte, language string) (*Node, error)

	// SupportsLanguage reports whether a real grammar is available.
	SupportsLanguage(language string) bool

	// Languages lists the supported languages.
	Languages() []string
}

// multiParser dispatches on language: markdown and plain text are always
// available, code languages go to the tree-sitter parser.
type multiParser struct {
	code  Parser
	fixed map[string]Parser
}

// NewParser returns a parser for every language this build supports.
func NewParser() Parser {
	return &multiParser{
		code: newCodeParser(),
		fixed: map[string]Parser{
			LangMarkdown:  &markdownParser{},
			LangPlaintext: &lineParser{},
		},
	}
}

func (p *multiParser) pick(language string) Parser {
	language = strings.ToLower(language)
	if fp, ok := p.fixed[language]; ok {
		return fp
	}
	return p.code
}

func (p *multiParser) Parse(ctx context.Context, content []byte, language string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.pick(language).Parse(ctx, content, strings.ToLower(language))
}

func (p *multiParser) SupportsLanguage(language string) bool {
	return p.pick(language).SupportsLanguage(strings.ToLower(language))
}

func (p *multiParser) Languages() []string {
	langs := p.code.Languages()
	for name := range p.fixed {
		langs = append(langs, name)
	}
	sort.Strings(langs)
	return langs
}

// NodeKinds returns the node kinds the named parser can emit, sorted.
// It is nil when the set is not known, as for a grammar this build lacks.
func NodeKinds(parser string) []string {
	switch parser = strings.ToLower(parser); parser {
	case LangMarkdown:
		return append([]string(nil), markdownKinds...)
	case LangPlaintext:
		return append([]string(nil), lineKinds...)
	}
	return grammarKinds(parser)
}

func unsupported(language string, p Parser) error {
	return apperrors.UnsupportedLanguageError(language, p.Languages())
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	starts := lineIndex{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (li lineIndex) line(off int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > off })
}

// setLines fills StartLine and EndLine from byte offsets.
func (li lineIndex) setLines(root *Node) {
	Walk(root, func(n *Node) bool {
		n.StartLine = li.line(n.Start)
		n.EndLine = li.line(max(n.End-1, n.Start))
		return true
	})
}

// lineStart returns the offset of the start of the line containing off.
func lineStart(src []byte, off int) int {
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}
