package chunk

// SyntaxNode is the read-only view of a parsed tree node the chunker walks.
// Children must be ordered, non-overlapping and contained in the parent;
// gaps between them are trivia and are preserved.
type SyntaxNode interface {
	Kind() string
	StartByte() int
	EndByte() int
	ChildCount() int
	Child(i int) SyntaxNode
}

// FieldNode is implemented by nodes that expose grammar field names for
// their children (tree-sitter "name", "body", "declarator", ...).
type FieldNode interface {
	// ChildByField returns nil when no child carries the field.
	ChildByField(name string) SyntaxNode
	FieldNameForChild(i int) string
}

// NamedNode is implemented by nodes whose parser already resolved a name,
// such as markdown sections titled by their heading.
type NamedNode interface {
	NodeName() string
}

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range covers no bytes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Overlaps reports whether the two ranges share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return max(r.Start, o.Start) < min(r.End, o.End)
}

// Class is how a Language Profile classifies a node kind.
type Class uint8

const (
	// ClassStructural nodes are decomposed into their children without
	// contributing an ancestor frame (blocks, statements, the file root).
	ClassStructural Class = iota
	// ClassContainer nodes enclose chunkable constructs and contribute a
	// frame to the ancestor chain (classes, functions, namespaces).
	ClassContainer
	// ClassLeaf nodes are never decomposed; oversized ones are raw-split.
	ClassLeaf
	// ClassError marks parser error-recovery nodes, handled like leaves.
	ClassError
	// ClassUnknown marks kinds outside the profile's declared universe,
	// handled like leaves and reported as unsupported constructs.
	ClassUnknown
)

func (c Class) String() string {
	switch c {
	case ClassStructural:
		return "structural"
	case ClassContainer:
		return "container"
	case ClassLeaf:
		return "leaf"
	case ClassError:
		return "error"
	case ClassUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Profile is the narrow query interface the chunker needs from a
// per-language configuration.
type Profile interface {
	Name() string
	Classify(kind string) Class
	// Identifier returns the name of a container node, or false when the
	// construct is anonymous.
	Identifier(n SyntaxNode, src []byte) (string, bool)
	// Body returns the index of the child holding a container's nested
	// body, or -1. Children before and after it are decorative syntax.
	Body(n SyntaxNode) int
}
