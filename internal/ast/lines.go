package ast

import (
	"bytes"
	"context"
)

// lineParser builds a "document" of blank-line separated "paragraph"
// nodes, each holding its "line" nodes. Blank lines are trivia.
type lineParser struct{}

func (p *lineParser) Parse(_ context.Context, content []byte, _ string) (*Node, error) {
	return ParseLines(content), nil
}

func (p *lineParser) SupportsLanguage(language string) bool {
	return language == LangPlaintext
}

func (p *lineParser) Languages() []string {
	return []string{LangPlaintext}
}

var lineKinds = []string{"document", "line", "paragraph"}

// ParseLines builds the paragraph/line tree for content.
func ParseLines(content []byte) *Node {
	root := &Node{Type: "document", Start: 0, End: len(content)}

	var para *Node
	off := 0
	for off < len(content) {
		end := len(content)
		if i := bytes.IndexByte(content[off:], '\n'); i >= 0 {
			end = off + i + 1
		}
		if len(bytes.TrimSpace(content[off:end])) == 0 {
			para = nil
			off = end
			continue
		}
		if para == nil {
			para = &Node{Type: "paragraph", Start: off}
			root.Children = append(root.Children, para)
		}
		para.Children = append(para.Children, &Node{Type: "line", Start: off, End: end})
		para.End = end
		off = end
	}

	newLineIndex(content).setLines(root)
	return root
}
