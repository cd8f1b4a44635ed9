package chunk

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	apperrors "github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// BPEMetric counts tokens with a tiktoken BPE encoding. It reports
// UnitTokens, so it can replace the heuristic estimator via Options.Metric.
type BPEMetric struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewBPEMetric loads the named encoding. An empty name selects cl100k_base.
func NewBPEMetric(name string) (*BPEMetric, error) {
	if name == "" {
		name = DefaultEncoding
	}
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("load tokenizer %q", name), err)
	}
	return &BPEMetric{encoding: encoding, name: name}, nil
}

// Encoding returns the encoding name.
func (m *BPEMetric) Encoding() string {
	return m.name
}

func (m *BPEMetric) Unit() Unit { return UnitTokens }

func (m *BPEMetric) Measure(text []byte) int {
	if len(text) == 0 {
		return 0
	}
	return len(m.encoding.Encode(string(text), nil, nil))
}

// boundaries returns the byte offset at which each token ends.
func (m *BPEMetric) boundaries(text []byte) []int {
	tokens := m.encoding.Encode(string(text), nil, nil)
	ends := make([]int, len(tokens))
	off := 0
	for i, tok := range tokens {
		off += len(m.encoding.Decode([]int{tok}))
		ends[i] = min(off, len(text))
	}
	return ends
}

func (m *BPEMetric) Split(text []byte, budget int) []int {
	ends := m.boundaries(text)
	var cuts []int
	last := 0
	for i := budget - 1; i < len(ends)-1; i += budget {
		cut := ends[i]
		for cut > last && cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut <= last {
			continue
		}
		cuts = append(cuts, cut)
		last = cut
	}
	return finishCuts(text, cuts, nil)
}

func (m *BPEMetric) Tail(text []byte, n int) int {
	if n <= 0 {
		return len(text)
	}
	ends := m.boundaries(text)
	if n >= len(ends) {
		return 0
	}
	off := ends[len(ends)-n-1]
	for off < len(text) && !utf8.RuneStart(text[off]) {
		off++
	}
	return off
}
