// Package chunk turns a parsed syntax tree into ordered, size-bounded chunks
// that carry the chain of enclosing containers as a textual preamble.
//
// The package is pure: it reads the source and the tree, performs no I/O,
// and keeps no state between calls, so independent files may be chunked
// concurrently.
package chunk

import (
	"fmt"
	"strings"

	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Default chunking parameters.
const (
	DefaultBudget           = 512
	DefaultMaxDepth         = 512
	DefaultOverlapDelimiter = "--- overlap ---"
)

// Options configures a chunking call. The zero value is usable: every
// unset field takes its default.
type Options struct {
	// Budget is the maximum core size of a chunk, in Unit.
	Budget int
	// Overlap is how much of the previous chunk's core, in Unit, is shown
	// ahead of each chunk. Zero disables overlap.
	Overlap int
	Unit    Unit
	// Metric overrides the built-in metric for Unit.
	Metric Metric

	// MaxDepth bounds the nesting depth the partitioner will descend.
	MaxDepth int
	// MaxNodes bounds the number of nodes decomposed. Zero means no limit.
	MaxNodes int

	// CountAncestors charges the rendered preamble against Budget.
	CountAncestors bool
	// DisableMerge keeps partitioner segments as they are.
	DisableMerge bool

	Style            Style
	OverlapDelimiter string
}

// Validate checks the options without applying defaults.
func (o Options) Validate() error {
	var errs []string
	if o.Budget < 0 {
		errs = append(errs, fmt.Sprintf("budget must be positive, got %d", o.Budget))
	}
	if o.Overlap < 0 {
		errs = append(errs, fmt.Sprintf("overlap must not be negative, got %d", o.Overlap))
	}
	if o.MaxDepth < 0 {
		errs = append(errs, fmt.Sprintf("max depth must not be negative, got %d", o.MaxDepth))
	}
	if o.MaxNodes < 0 {
		errs = append(errs, fmt.Sprintf("max nodes must not be negative, got %d", o.MaxNodes))
	}
	if o.Unit != "" && o.Metric == nil {
		if _, err := ParseUnit(string(o.Unit)); err != nil {
			errs = append(errs, fmt.Sprintf("invalid unit: %q", o.Unit))
		}
	}
	if _, err := ParseStyle(string(o.Style)); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return apperrors.ValidationError("invalid chunk options: " + strings.Join(errs, "; "))
	}
	return nil
}

// resolve validates o and fills in defaults.
func (o Options) resolve() (Options, Metric, error) {
	if err := o.Validate(); err != nil {
		return o, nil, err
	}
	if o.Budget == 0 {
		o.Budget = DefaultBudget
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	o.Style, _ = ParseStyle(string(o.Style))
	if o.OverlapDelimiter == "" {
		o.OverlapDelimiter = DefaultOverlapDelimiter
	}

	metric := o.Metric
	if metric == nil {
		if o.Unit == "" {
			o.Unit = UnitTokens
		}
		u, _ := ParseUnit(string(o.Unit))
		m, err := NewMetric(u)
		if err != nil {
			return o, nil, err
		}
		metric = m
	}
	o.Unit = metric.Unit()
	return o, metric, nil
}

// Build chunks src, whose syntax tree is root, under profile p. The result
// covers src exactly; an empty src yields no chunks. Recursion, node-limit
// and coverage failures are returned as errors with no partial output.
func Build(src []byte, root SyntaxNode, p Profile, opts Options) ([]Chunk, error) {
	segs, err := Partition(src, root, p, opts)
	if err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return nil, nil
	}
	return Assemble(src, segs, opts)
}
