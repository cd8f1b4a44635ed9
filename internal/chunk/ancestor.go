package chunk

import (
	"bytes"
	"fmt"
	"strings"
)

// AnonymousPlaceholder stands in for the identifier of an unnamed container.
const AnonymousPlaceholder = "<anonymous>"

// Frame is one enclosing container in an ancestor chain.
type Frame struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier,omitempty"`
	Named      bool   `json:"named"`
	DeclaredAt int    `json:"declared_at"`
	// Signature is the first line of the container's text.
	Signature string `json:"signature"`
}

// Label renders the frame as "kind identifier" or "kind <anonymous>".
func (f Frame) Label() string {
	if !f.Named {
		return f.Kind + " " + AnonymousPlaceholder
	}
	return f.Kind + " " + f.Identifier
}

// Style selects how a chain is rendered into a preamble.
type Style string

const (
	StyleKind      Style = "kind"
	StyleSignature Style = "signature"
)

// ParseStyle parses a preamble style name. Empty selects StyleKind.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleKind:
		return StyleKind, nil
	case StyleSignature:
		return StyleSignature, nil
	default:
		return "", fmt.Errorf("invalid preamble style: %q (must be kind or signature)", s)
	}
}

// Chain is an ordered outer-to-inner ancestor sequence. Chains handed out
// by the Tracker are copies and never alias its stack.
type Chain []Frame

// Equal reports whether two chains hold the same frames in the same order.
func (c Chain) Equal(o Chain) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p is a prefix of c.
func (c Chain) HasPrefix(p Chain) bool {
	return len(p) <= len(c) && c[:len(p)].Equal(p)
}

// Render produces the preamble text: one line per frame, indented with one
// tab per nesting level. An empty chain renders as "".
func (c Chain) Render(style Style) string {
	if len(c) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, f := range c {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Repeat("\t", i))
		if style == StyleSignature && f.Signature != "" {
			sb.WriteString(f.Signature)
		} else {
			sb.WriteString(f.Label())
		}
	}
	return sb.String()
}

// Tracker maintains the live ancestor stack during one traversal.
type Tracker struct {
	profile Profile
	src     []byte
	stack   []Frame
}

// NewTracker creates a tracker that resolves identifiers through p.
func NewTracker(p Profile, src []byte) *Tracker {
	return &Tracker{profile: p, src: src}
}

// Frame builds the frame for n, or returns false when the profile does not
// classify n as a container.
func (t *Tracker) Frame(n SyntaxNode) (Frame, bool) {
	if t.profile.Classify(n.Kind()) != ClassContainer {
		return Frame{}, false
	}
	name, named := t.profile.Identifier(n, t.src)
	name = strings.TrimSpace(name)
	if name == "" {
		named = false
	}
	return Frame{
		Kind:       n.Kind(),
		Identifier: name,
		Named:      named,
		DeclaredAt: n.StartByte(),
		Signature:  firstLine(t.src[n.StartByte():n.EndByte()]),
	}, true
}

// Enter pushes the frame for container n and returns it. Non-containers
// are not pushed.
func (t *Tracker) Enter(n SyntaxNode) (Frame, bool) {
	f, ok := t.Frame(n)
	if ok {
		t.stack = append(t.stack, f)
	}
	return f, ok
}

// Leave pops the innermost frame.
func (t *Tracker) Leave() {
	if len(t.stack) > 0 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// Depth returns the number of frames on the stack.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

// Snapshot copies the current chain, followed by extra.
func (t *Tracker) Snapshot(extra ...Frame) Chain {
	if len(t.stack)+len(extra) == 0 {
		return nil
	}
	out := make(Chain, 0, len(t.stack)+len(extra))
	out = append(out, t.stack...)
	return append(out, extra...)
}

func firstLine(text []byte) string {
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(string(text))
}
