package chunk

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Chunk is one output unit. Core ranges of consecutive chunks are
// contiguous; the overlap region is a display-only copy of the previous
// chunk's core tail.
type Chunk struct {
	Index       int    `json:"index"`
	Core        Range  `json:"core"`
	Overlap     Range  `json:"overlap,omitzero"` // zero when there is no overlap
	Text        string `json:"text"`
	OverlapText string `json:"overlap_text,omitempty"`
	Preamble    string `json:"preamble,omitempty"`
	Ancestors   Chain  `json:"ancestors,omitempty"`

	Unit         Unit `json:"unit"`
	CoreSize     int  `json:"core_size"`
	PreambleSize int  `json:"preamble_size"`
	// Size is CoreSize plus PreambleSize. It may exceed the budget by the
	// preamble unless ancestors are counted toward the budget.
	Size int `json:"size"`

	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	Nodes     int `json:"node_count"`

	Oversized bool      `json:"oversized,omitempty"`
	Warnings  []Warning `json:"warnings,omitempty"`

	delimiter string
}

// OverlapPrefix returns the overlap region followed by its delimiter
// line, or "" when the chunk has no overlap. Indentation left dangling at
// the end of the region is dropped.
func (c Chunk) OverlapPrefix() string {
	if c.OverlapText == "" {
		return ""
	}
	var sb strings.Builder
	text := strings.TrimRight(c.OverlapText, " \t")
	sb.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		sb.WriteByte('\n')
	}
	if c.delimiter != "" {
		sb.WriteString(c.delimiter)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Render returns the text a consumer sees: the overlap region and its
// delimiter, the preamble, then the core.
func (c Chunk) Render() string {
	var sb strings.Builder
	sb.WriteString(c.OverlapPrefix())
	if c.Preamble != "" {
		sb.WriteString(c.Preamble)
		sb.WriteByte('\n')
	}
	sb.WriteString(c.Text)
	return sb.String()
}

// Assemble merges segments, attaches preambles and overlap, and validates
// that the chunk cores cover src exactly.
func Assemble(src []byte, segs []Segment, opts Options) ([]Chunk, error) {
	opts, metric, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	if !opts.DisableMerge {
		segs = merge(src, segs, metric, opts)
	}

	lines := newLineIndex(src)
	chunks := make([]Chunk, 0, len(segs))
	for i, s := range segs {
		if s.Range.Start < 0 || s.Range.End > len(src) || s.Range.Empty() {
			return nil, apperrors.CoverageViolationError(
				fmt.Sprintf("segment %d has invalid range [%d,%d) for %d bytes", i, s.Range.Start, s.Range.End, len(src)))
		}
		core := src[s.Range.Start:s.Range.End]
		preamble := s.Chain.Render(opts.Style)
		c := Chunk{
			Index:        i,
			Core:         s.Range,
			Text:         string(core),
			Preamble:     preamble,
			Ancestors:    append(Chain(nil), s.Chain...),
			Unit:         metric.Unit(),
			CoreSize:     metric.Measure(core),
			PreambleSize: preambleSize(metric, s.Chain, opts.Style),
			Nodes:        s.Nodes,
			Oversized:    s.Oversized,
			Warnings:     s.Warnings,
			delimiter:    opts.OverlapDelimiter,
		}
		c.Size = c.CoreSize + c.PreambleSize
		c.StartLine, c.EndLine = lines.span(src, s.Range)

		if i > 0 && opts.Overlap > 0 {
			prev := chunks[i-1].Core
			off := metric.Tail(src[prev.Start:prev.End], opts.Overlap)
			if r := (Range{Start: prev.Start + off, End: prev.End}); !r.Empty() {
				c.Overlap = r
				c.OverlapText = string(src[r.Start:r.End])
			}
		}
		chunks = append(chunks, c)
	}

	if err := ValidateCoverage(chunks, Range{Start: 0, End: len(src)}); err != nil {
		return nil, err
	}
	return chunks, nil
}

// merge joins adjacent segments that share a chain, are not raw-split,
// and still fit the budget together.
func merge(src []byte, segs []Segment, metric Metric, opts Options) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if !prev.Oversized && !s.Oversized && prev.Range.End == s.Range.Start && prev.Chain.Equal(s.Chain) {
				joined := Range{Start: prev.Range.Start, End: s.Range.End}
				size := metric.Measure(src[joined.Start:joined.End])
				total := size
				if opts.CountAncestors {
					total += preambleSize(metric, prev.Chain, opts.Style)
				}
				if total <= opts.Budget {
					prev.Range = joined
					prev.Size = size
					prev.Nodes += s.Nodes
					prev.Warnings = append(prev.Warnings, s.Warnings...)
					continue
				}
			}
		}
		out = append(out, s)
	}
	return out
}

// ValidateCoverage checks that chunk cores tile whole with no gap or
// overlap, in order.
func ValidateCoverage(chunks []Chunk, whole Range) error {
	if len(chunks) == 0 {
		if whole.Empty() {
			return nil
		}
		return apperrors.CoverageViolationError(fmt.Sprintf("no chunks cover [%d,%d)", whole.Start, whole.End))
	}
	pos := whole.Start
	for i, c := range chunks {
		if c.Core.Start != pos {
			kind := "gap"
			if c.Core.Start < pos {
				kind = "overlap"
			}
			return apperrors.CoverageViolationError(
				fmt.Sprintf("%s before chunk %d: expected start %d, got %d", kind, i, pos, c.Core.Start)).
				WithDetail("offset", fmt.Sprintf("%d", pos))
		}
		if c.Core.Empty() {
			return apperrors.CoverageViolationError(fmt.Sprintf("chunk %d is empty at offset %d", i, pos))
		}
		pos = c.Core.End
	}
	if pos != whole.End {
		return apperrors.CoverageViolationError(
			fmt.Sprintf("chunks end at %d, source ends at %d", pos, whole.End)).
			WithDetail("offset", fmt.Sprintf("%d", pos))
	}
	return nil
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

// span returns the lines of the first and last non-whitespace characters
// in r, or of its bounds when r is blank.
func (li lineIndex) span(src []byte, r Range) (int, int) {
	first, last := r.Start, r.End-1
	for first < r.End {
		c, size := utf8.DecodeRune(src[first:r.End])
		if !unicode.IsSpace(c) {
			break
		}
		first += size
	}
	if first == r.End {
		return li.line(r.Start), li.line(r.End - 1)
	}
	for last > first {
		c, size := utf8.DecodeLastRune(src[r.Start : last+1])
		if !unicode.IsSpace(c) {
			break
		}
		last -= size
	}
	return li.line(first), li.line(last)
}
