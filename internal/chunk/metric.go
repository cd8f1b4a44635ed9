package chunk

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Unit names the size metric a budget is expressed in.
type Unit string

const (
	UnitLines  Unit = "lines"
	UnitTokens Unit = "tokens"
	UnitBytes  Unit = "bytes"
	// UnitNWS counts non-whitespace characters.
	UnitNWS Unit = "nws"
)

// Units lists every supported unit.
var Units = []Unit{UnitLines, UnitTokens, UnitBytes, UnitNWS}

// ParseUnit parses a unit name, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Units {
		if u == known {
			return u, nil
		}
	}
	return "", apperrors.ValidationError(fmt.Sprintf("invalid size unit: %q (must be lines, tokens, bytes, or nws)", s))
}

// Metric measures text and finds cut points in the same unit.
type Metric interface {
	Unit() Unit
	Measure(text []byte) int
	// Split returns the end offsets of consecutive pieces of text, each
	// measuring at most budget unless a single character exceeds it. The
	// last offset is always len(text).
	Split(text []byte, budget int) []int
	// Tail returns the offset at which the trailing n units of text start.
	Tail(text []byte, n int) int
}

// NewMetric returns the built-in metric for u.
func NewMetric(u Unit) (Metric, error) {
	switch u {
	case UnitLines:
		return linesMetric{}, nil
	case UnitTokens:
		return tokensMetric{}, nil
	case UnitBytes:
		return bytesMetric{}, nil
	case UnitNWS:
		return nwsMetric{}, nil
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid size unit: %q", u))
	}
}

// bytesMetric counts raw bytes; cuts never land inside a UTF-8 sequence.
type bytesMetric struct{}

func (bytesMetric) Unit() Unit { return UnitBytes }

func (bytesMetric) Measure(text []byte) int { return len(text) }

func (bytesMetric) Split(text []byte, budget int) []int {
	var cuts []int
	off := 0
	for off < len(text) {
		end := off + budget
		if end >= len(text) {
			break
		}
		for end > off && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == off {
			_, size := utf8.DecodeRune(text[off:])
			end = off + size
		}
		cuts = append(cuts, end)
		off = end
	}
	return finishCuts(text, cuts, nil)
}

func (bytesMetric) Tail(text []byte, n int) int {
	if n >= len(text) {
		return 0
	}
	off := len(text) - n
	for off < len(text) && !utf8.RuneStart(text[off]) {
		off++
	}
	return off
}

// linesMetric counts newline-terminated lines plus a trailing partial line
// when it holds anything but whitespace, so indentation that belongs to the
// next construct never costs a line.
type linesMetric struct{}

func (linesMetric) Unit() Unit { return UnitLines }

func (linesMetric) Measure(text []byte) int {
	n := bytes.Count(text, []byte{'\n'})
	last := bytes.LastIndexByte(text, '\n')
	if !isBlank(text[last+1:]) {
		n++
	}
	return n
}

func (linesMetric) Split(text []byte, budget int) []int {
	var cuts []int
	seen := 0
	for i, b := range text {
		if b != '\n' {
			continue
		}
		seen++
		if seen == budget {
			cuts = append(cuts, i+1)
			seen = 0
		}
	}
	return finishCuts(text, cuts, blankLine)
}

func (linesMetric) Tail(text []byte, n int) int {
	if n <= 0 {
		return len(text)
	}
	end := len(text)
	if last := bytes.LastIndexByte(text, '\n'); last >= 0 && isBlank(text[last+1:]) {
		end = last
	}
	for k := 0; k < n; k++ {
		j := bytes.LastIndexByte(text[:end], '\n')
		if j < 0 {
			return 0
		}
		if k == n-1 {
			return j + 1
		}
		end = j
	}
	return 0
}

// CharsPerToken is the heuristic ratio used by the tokens metric.
const CharsPerToken = 4

// tokensMetric estimates tokens as ceil(runes / 4).
type tokensMetric struct{}

func (tokensMetric) Unit() Unit { return UnitTokens }

func (tokensMetric) Measure(text []byte) int {
	return EstimateTokens(text)
}

func (tokensMetric) Split(text []byte, budget int) []int {
	var cuts []int
	limit := budget * CharsPerToken
	runes := 0
	for i := range string(text) {
		if runes == limit {
			cuts = append(cuts, i)
			runes = 0
		}
		runes++
	}
	return finishCuts(text, cuts, nil)
}

func (tokensMetric) Tail(text []byte, n int) int {
	want := n * CharsPerToken
	off := len(text)
	for off > 0 && want > 0 {
		_, size := utf8.DecodeLastRune(text[:off])
		off -= size
		want--
	}
	return off
}

// EstimateTokens estimates the token count for text.
// Uses a simple heuristic: ~4 characters per token for code.
func EstimateTokens(text []byte) int {
	runeCount := utf8.RuneCount(text)
	return (runeCount + CharsPerToken - 1) / CharsPerToken
}

// nwsMetric counts non-whitespace characters.
type nwsMetric struct{}

func (nwsMetric) Unit() Unit { return UnitNWS }

func (nwsMetric) Measure(text []byte) int {
	n := 0
	for _, r := range string(text) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func (nwsMetric) Split(text []byte, budget int) []int {
	var cuts []int
	seen := 0
	for i, r := range string(text) {
		if unicode.IsSpace(r) {
			continue
		}
		if seen == budget {
			cuts = append(cuts, i)
			seen = 0
		}
		seen++
	}
	return finishCuts(text, cuts, isBlank)
}

func (nwsMetric) Tail(text []byte, n int) int {
	if n <= 0 {
		return len(text)
	}
	off := len(text)
	for off > 0 {
		r, size := utf8.DecodeLastRune(text[:off])
		off -= size
		if !unicode.IsSpace(r) {
			n--
			if n == 0 {
				return off
			}
		}
	}
	return 0
}

// finishCuts terminates a cut list at len(text). When free reports that
// the remainder after the last cut costs nothing, it joins the last piece
// instead of being emitted alone.
func finishCuts(text []byte, cuts []int, free func([]byte) bool) []int {
	if n := len(cuts); n > 0 && cuts[n-1] >= len(text) {
		cuts = cuts[:n-1]
	}
	if n := len(cuts); n > 0 && free != nil && free(text[cuts[n-1]:]) {
		cuts = cuts[:n-1]
	}
	return append(cuts, len(text))
}

// blankLine reports whether text is whitespace without a line break.
func blankLine(text []byte) bool {
	return isBlank(text) && bytes.IndexByte(text, '\n') < 0
}

func isBlank(text []byte) bool {
	return len(bytes.TrimSpace(text)) == 0
}
