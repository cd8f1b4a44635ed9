package ast

import (
	"context"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// markdownParser builds heading-section trees from goldmark documents.
// Every heading opens a "section" that runs until the next heading of the
// same or a higher level; sections nest by level.
type markdownParser struct{}

func (p *markdownParser) Parse(ctx context.Context, content []byte, _ string) (*Node, error) {
	return ParseMarkdown(content), nil
}

func (p *markdownParser) SupportsLanguage(language string) bool {
	return language == LangMarkdown
}

func (p *markdownParser) Languages() []string {
	return []string{LangMarkdown}
}

// mdBlock is a top-level goldmark block located in the source.
type mdBlock struct {
	node  gast.Node
	start int
	end   int
}

// ParseMarkdown builds the section tree for content.
func ParseMarkdown(content []byte) *Node {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(content))

	root := &Node{Type: "document", Start: 0, End: len(content)}
	blocks := locate(doc, content, len(content))

	type stackEntry struct {
		node  *Node
		level int
	}
	stack := []stackEntry{{node: root, level: 0}}
	closeTo := func(level, at int) {
		for len(stack) > 1 && stack[len(stack)-1].level >= level {
			stack[len(stack)-1].node.End = at
			stack = stack[:len(stack)-1]
		}
	}

	for _, b := range blocks {
		n := blockNode(b, content)
		if h, ok := b.node.(*gast.Heading); ok {
			closeTo(h.Level, b.start)
			sec := &Node{
				Type:  "section",
				Name:  headingTitle(h, content),
				Start: b.start,
			}
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, sec)
			stack = append(stack, stackEntry{node: sec, level: h.Level})
			sec.Children = append(sec.Children, n)
			continue
		}
		top := stack[len(stack)-1].node
		top.Children = append(top.Children, n)
	}
	closeTo(1, len(content))

	newLineIndex(content).setLines(root)
	return root
}

// locate finds the children of parent that can be placed in the source.
// Each block starts at the beginning of its first line and ends where the
// next located block starts; blocks that cannot be placed become trivia.
func locate(parent gast.Node, src []byte, end int) []mdBlock {
	var blocks []mdBlock
	prev := -1
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		start, ok := blockStart(c, src)
		if !ok || start <= prev || start >= end {
			continue
		}
		blocks = append(blocks, mdBlock{node: c, start: start})
		prev = start
	}
	for i := range blocks {
		if i+1 < len(blocks) {
			blocks[i].end = blocks[i+1].start
		} else {
			blocks[i].end = end
		}
	}
	return blocks
}

func blockStart(n gast.Node, src []byte) (int, bool) {
	if fc, ok := n.(*gast.FencedCodeBlock); ok {
		if fc.Info != nil {
			return lineStart(src, fc.Info.Segment.Start), true
		}
		if fc.Lines().Len() > 0 {
			first := lineStart(src, fc.Lines().At(0).Start)
			if first == 0 {
				return 0, true
			}
			return lineStart(src, first-1), true
		}
		return 0, false
	}
	off, ok := firstOffset(n)
	if !ok {
		return 0, false
	}
	return lineStart(src, off), true
}

// firstOffset returns the earliest source offset recorded in n or its
// descendants.
func firstOffset(n gast.Node) (int, bool) {
	if t, ok := n.(*gast.Text); ok {
		return t.Segment.Start, true
	}
	if n.Type() == gast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off, ok := firstOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

func blockNode(b mdBlock, src []byte) *Node {
	n := &Node{Type: kindName(b.node.Kind()), Start: b.start, End: b.end}
	if _, ok := b.node.(*gast.List); ok {
		for _, item := range locate(b.node, src, b.end) {
			n.Children = append(n.Children, blockNode(item, src))
		}
	}
	return n
}

func headingTitle(h *gast.Heading, src []byte) string {
	var sb strings.Builder
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.Write(line.Value(src))
	}
	return strings.TrimSpace(sb.String())
}

// markdownKinds are the kinds ParseMarkdown emits for CommonMark and GFM
// blocks. A block from any other extension keeps its own kind name.
var markdownKinds = []string{
	"blockquote", "code_block", "document", "fenced_code_block", "heading",
	"html_block", "list", "list_item", "paragraph", "section", "table",
	"text_block", "thematic_break",
}

// kindName converts a goldmark kind such as FencedCodeBlock to
// fenced_code_block.
func kindName(k gast.NodeKind) string {
	name := k.String()
	switch name {
	case "HTMLBlock":
		return "html_block"
	}
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
