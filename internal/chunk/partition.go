package chunk

import (
	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// WarningKind classifies a recoverable condition met while partitioning.
type WarningKind string

const (
	// WarnOversizedLeaf marks a leaf larger than the budget that was raw-split.
	WarnOversizedLeaf WarningKind = "oversized_leaf"
	// WarnUnsupportedConstruct marks a kind unknown to the profile that was
	// handled as a leaf.
	WarnUnsupportedConstruct WarningKind = "unsupported_construct"
	// WarnErrorNode marks a parser error-recovery node that was raw-split.
	WarnErrorNode WarningKind = "error_node"
)

// Warning annotates a segment with a recoverable condition.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	NodeKind string      `json:"node_kind"`
	Offset   int         `json:"offset"`
}

// Segment is a contiguous source range produced by the partitioner,
// tagged with the ancestor chain in effect when it was emitted.
type Segment struct {
	Range     Range
	Chain     Chain
	Size      int
	Oversized bool
	Warnings  []Warning
	// Nodes is the number of sibling syntax nodes the segment spans.
	Nodes int
}

// piece is one child of a scope, widened to absorb the trivia around it.
type piece struct {
	node SyntaxNode
	rng  Range
}

// scope is one frame of the explicit work stack: a node whose pieces are
// being accumulated into segments.
type scope struct {
	pieces  []piece
	next    int
	entered bool
	depth   int

	buf     Range
	bufN    int
	bufNode SyntaxNode
}

type partitioner struct {
	src     []byte
	profile Profile
	opts    Options
	metric  Metric
	tracker *Tracker

	stack []*scope
	out   []Segment
	nodes int
}

// Partition splits the whole of src into budget-bounded segments following
// the structure of root. The returned segments are ordered and contiguous
// and cover [0, len(src)).
func Partition(src []byte, root SyntaxNode, p Profile, opts Options) ([]Segment, error) {
	opts, metric, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return nil, nil
	}
	pt := &partitioner{
		src:     src,
		profile: p,
		opts:    opts,
		metric:  metric,
		tracker: NewTracker(p, src),
	}
	return pt.run(root)
}

func (pt *partitioner) run(root SyntaxNode) ([]Segment, error) {
	whole := Range{Start: 0, End: len(pt.src)}
	if root == nil {
		pt.rawSplit(whole, nil)
		return pt.out, nil
	}

	if pt.fits(whole, root) {
		pt.emit(whole, pt.tracker.Snapshot(pt.descent(root)...), 1)
		return pt.out, nil
	}
	if err := pt.visit(root, whole, 0); err != nil {
		return nil, err
	}

	for len(pt.stack) > 0 {
		sc := pt.stack[len(pt.stack)-1]
		if sc.next == len(sc.pieces) {
			pt.flush(sc)
			if sc.entered {
				pt.tracker.Leave()
			}
			pt.stack = pt.stack[:len(pt.stack)-1]
			continue
		}

		pc := sc.pieces[sc.next]
		sc.next++

		if sc.bufN > 0 {
			joined := Range{Start: sc.buf.Start, End: pc.rng.End}
			if pt.fits(joined, nil) {
				sc.buf = joined
				sc.bufN++
				continue
			}
			pt.flush(sc)
		}
		if pt.fits(pc.rng, pc.node) {
			sc.buf = pc.rng
			sc.bufN = 1
			sc.bufNode = pc.node
			continue
		}
		if err := pt.visit(pc.node, pc.rng, sc.depth+1); err != nil {
			return nil, err
		}
	}
	return pt.out, nil
}

// visit handles a node that does not fit the budget: containers and
// structural nodes open a new scope, everything else is raw-split.
func (pt *partitioner) visit(n SyntaxNode, rng Range, depth int) error {
	if depth > pt.opts.MaxDepth {
		return apperrors.RecursionLimitError(pt.opts.MaxDepth, n.StartByte())
	}
	pt.nodes++
	if pt.opts.MaxNodes > 0 && pt.nodes > pt.opts.MaxNodes {
		return apperrors.NodeLimitError(pt.opts.MaxNodes)
	}

	class := pt.profile.Classify(n.Kind())
	switch class {
	case ClassError:
		pt.rawSplit(rng, &Warning{Kind: WarnErrorNode, NodeKind: n.Kind(), Offset: n.StartByte()})
		return nil
	case ClassUnknown:
		pt.rawSplit(rng, &Warning{Kind: WarnUnsupportedConstruct, NodeKind: n.Kind(), Offset: n.StartByte()})
		return nil
	case ClassLeaf:
		pt.rawSplit(rng, &Warning{Kind: WarnOversizedLeaf, NodeKind: n.Kind(), Offset: n.StartByte()})
		return nil
	}

	entered := false
	if class == ClassContainer {
		_, entered = pt.tracker.Enter(n)
	}
	pieces := pt.pieces(n, class, rng)
	if len(pieces) == 0 {
		pt.rawSplit(rng, &Warning{Kind: WarnOversizedLeaf, NodeKind: n.Kind(), Offset: n.StartByte()})
		if entered {
			pt.tracker.Leave()
		}
		return nil
	}
	pt.stack = append(pt.stack, &scope{pieces: pieces, entered: entered, depth: depth})
	return nil
}

// pieces lists the children of n widened so that together they tile rng.
// Leading trivia joins the first piece; trivia after a child joins that
// child. For a container with a structural body, the body's children are
// used and the header and trailer become their trivia.
func (pt *partitioner) pieces(n SyntaxNode, class Class, rng Range) []piece {
	parent := n
	if class == ClassContainer {
		if b := pt.profile.Body(n); b >= 0 && b < n.ChildCount() {
			body := n.Child(b)
			if body != nil && body.ChildCount() > 0 && pt.profile.Classify(body.Kind()) == ClassStructural {
				parent = body
			}
		}
	}

	out := make([]piece, 0, parent.ChildCount())
	prevEnd := rng.Start
	for i := 0; i < parent.ChildCount(); i++ {
		c := parent.Child(i)
		if c == nil {
			continue
		}
		r := Range{Start: max(c.StartByte(), prevEnd), End: min(c.EndByte(), rng.End)}
		if r.Empty() {
			continue
		}
		out = append(out, piece{node: c, rng: r})
		prevEnd = r.End
	}
	if len(out) == 0 {
		return nil
	}

	out[0].rng.Start = rng.Start
	for i := 0; i < len(out)-1; i++ {
		out[i].rng.End = out[i+1].rng.Start
	}
	out[len(out)-1].rng.End = rng.End
	return out
}

// fits reports whether r, rendered with its preamble when ancestors count
// toward the budget, stays within the budget. single is the only node the
// range would hold, if any, which may extend the chain.
func (pt *partitioner) fits(r Range, single SyntaxNode) bool {
	size := pt.metric.Measure(pt.src[r.Start:r.End])
	if size > pt.opts.Budget {
		return false
	}
	if pt.opts.CountAncestors {
		var chain Chain
		if single != nil {
			chain = pt.tracker.Snapshot(pt.descent(single)...)
		} else {
			chain = pt.tracker.Snapshot()
		}
		size += preambleSize(pt.metric, chain, pt.opts.Style)
	}
	return size <= pt.opts.Budget
}

func (pt *partitioner) flush(sc *scope) {
	if sc.bufN == 0 {
		return
	}
	chain := pt.tracker.Snapshot()
	if sc.bufN == 1 {
		chain = pt.tracker.Snapshot(pt.descent(sc.bufNode)...)
	}
	pt.emit(sc.buf, chain, sc.bufN)
	sc.buf = Range{}
	sc.bufN = 0
	sc.bufNode = nil
}

func (pt *partitioner) emit(r Range, chain Chain, nodes int) {
	pt.out = append(pt.out, Segment{
		Range: r,
		Chain: chain,
		Size:  pt.metric.Measure(pt.src[r.Start:r.End]),
		Nodes: nodes,
	})
}

// rawSplit cuts r at metric boundaries without regard to structure.
func (pt *partitioner) rawSplit(r Range, w *Warning) {
	chain := pt.tracker.Snapshot()
	budget := pt.opts.Budget
	if pt.opts.CountAncestors {
		budget = max(budget-preambleSize(pt.metric, chain, pt.opts.Style), 1)
	}

	text := pt.src[r.Start:r.End]
	start := r.Start
	for _, cut := range pt.metric.Split(text, budget) {
		end := r.Start + cut
		if end <= start {
			continue
		}
		seg := Segment{
			Range:     Range{Start: start, End: end},
			Chain:     chain,
			Size:      pt.metric.Measure(pt.src[start:end]),
			Oversized: true,
			Nodes:     1,
		}
		if w != nil {
			seg.Warnings = []Warning{*w}
		}
		pt.out = append(pt.out, seg)
		start = end
	}
}

// descent collects the frames of containers that n covers on its own:
// n itself, then down through container bodies and only-children.
func (pt *partitioner) descent(n SyntaxNode) []Frame {
	var frames []Frame
	for steps := 0; n != nil && steps <= pt.opts.MaxDepth; steps++ {
		switch pt.profile.Classify(n.Kind()) {
		case ClassContainer:
			if f, ok := pt.tracker.Frame(n); ok {
				frames = append(frames, f)
			}
			if b := pt.profile.Body(n); b >= 0 && b < n.ChildCount() {
				n = n.Child(b)
				continue
			}
		case ClassStructural:
		default:
			return frames
		}
		n = onlyChild(n)
	}
	return frames
}

// onlyChild returns the single non-empty child of n, or nil.
func onlyChild(n SyntaxNode) SyntaxNode {
	var found SyntaxNode
	for i := 0; i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil || c.EndByte() <= c.StartByte() {
			continue
		}
		if found != nil {
			return nil
		}
		found = c
	}
	return found
}

func preambleSize(m Metric, chain Chain, style Style) int {
	if len(chain) == 0 {
		return 0
	}
	return m.Measure([]byte(chain.Render(style) + "\n"))
}
