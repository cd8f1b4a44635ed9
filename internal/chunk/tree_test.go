package chunk

import (
	"strings"
)

// tn is a synthetic syntax node. Leaves carry text; inner nodes carry an
// optional head and tail written around their children.
type tn struct {
	kind string
	name string
	text string
	head string
	tail string
	kids []*tn
	body int

	start, end int
}

func (n *tn) Kind() string     { return n.kind }
func (n *tn) StartByte() int   { return n.start }
func (n *tn) EndByte() int     { return n.end }
func (n *tn) ChildCount() int  { return len(n.kids) }
func (n *tn) NodeName() string { return n.name }

func (n *tn) Child(i int) SyntaxNode {
	if i < 0 || i >= len(n.kids) {
		return nil
	}
	return n.kids[i]
}

func leaf(kind, text string) *tn {
	return &tn{kind: kind, text: text, body: -1}
}

func stmt(text string) *tn {
	return leaf("statement", text+"\n")
}

func node(kind, name, head, tail string, kids ...*tn) *tn {
	return &tn{kind: kind, name: name, head: head, tail: tail, kids: kids, body: -1}
}

func fn(name string, kids ...*tn) *tn {
	return node("function", name, "func "+name+"() {\n", "}\n", kids...)
}

// layout assigns byte offsets and returns the source text of root.
func layout(root *tn) []byte {
	var sb strings.Builder
	var walk func(n *tn)
	walk = func(n *tn) {
		n.start = sb.Len()
		if len(n.kids) == 0 {
			sb.WriteString(n.text)
		} else {
			sb.WriteString(n.head)
			for _, k := range n.kids {
				walk(k)
			}
			sb.WriteString(n.tail)
		}
		n.end = sb.Len()
	}
	walk(root)
	return []byte(sb.String())
}

func file(kids ...*tn) (*tn, []byte) {
	root := node("file", "", "", "", kids...)
	return root, layout(root)
}

// testProfile classifies kinds from fixed sets. When known is non-nil,
// kinds outside it are unknown.
type testProfile struct {
	containers map[string]bool
	leaves     map[string]bool
	known      map[string]bool
}

func newTestProfile() *testProfile {
	return &testProfile{
		containers: map[string]bool{"function": true, "class": true, "namespace": true},
		leaves:     map[string]bool{"statement": true, "string": true},
	}
}

func (p *testProfile) Name() string { return "test" }

func (p *testProfile) Classify(kind string) Class {
	switch {
	case kind == "ERROR":
		return ClassError
	case p.containers[kind]:
		return ClassContainer
	case p.leaves[kind]:
		return ClassLeaf
	case p.known != nil && !p.known[kind]:
		return ClassUnknown
	default:
		return ClassStructural
	}
}

func (p *testProfile) Identifier(n SyntaxNode, _ []byte) (string, bool) {
	nn, ok := n.(NamedNode)
	if !ok || nn.NodeName() == "" {
		return "", false
	}
	return nn.NodeName(), true
}

func (p *testProfile) Body(n SyntaxNode) int {
	if t, ok := n.(*tn); ok {
		return t.body
	}
	return -1
}

func stmts(n int, text string) []*tn {
	out := make([]*tn, n)
	for i := range out {
		out[i] = stmt(text)
	}
	return out
}

func concatCores(src []byte, chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.Write(src[c.Core.Start:c.Core.End])
	}
	return sb.String()
}
