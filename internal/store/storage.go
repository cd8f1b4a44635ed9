package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ricesearch/rice-chunk/internal/index"
)

// encode returns the value written for r.
func encode(r *index.Record, windows bool) any {
	if windows {
		return r.CodeWindow()
	}
	return r
}

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	enc     *json.Encoder
	windows bool
	count   int
}

// NewJSONLSink creates a JSON Lines sink on w. If w is an io.Closer it is
// closed by Close.
func NewJSONLSink(w io.Writer, windows bool) *JSONLSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	s := &JSONLSink{w: w, enc: enc, windows: windows}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *JSONLSink) Write(ctx context.Context, records []index.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enc.Encode(encode(&records[i], s.windows)); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", records[i].ID, err)
		}
		s.count++
	}
	return nil
}

// Count returns the number of records written.
func (s *JSONLSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *JSONLSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// JSONSink writes a single JSON array, streamed element by element.
type JSONSink struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	windows bool
	count   int
	closed  bool
}

// NewJSONSink creates a JSON array sink on w. If w is an io.Closer it is
// closed by Close.
func NewJSONSink(w io.Writer, windows bool) *JSONSink {
	s := &JSONSink{w: w, windows: windows}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *JSONSink) Write(ctx context.Context, records []index.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := marshal(encode(&records[i], s.windows))
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", records[i].ID, err)
		}
		sep := ",\n  "
		if s.count == 0 {
			sep = "[\n  "
		}
		if _, err := io.WriteString(s.w, sep); err != nil {
			return err
		}
		if _, err := s.w.Write(data); err != nil {
			return err
		}
		s.count++
	}
	return nil
}

// Count returns the number of records written.
func (s *JSONSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close terminates the array and closes the writer.
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	tail := "\n]\n"
	if s.count == 0 {
		tail = "[]\n"
	}
	_, err := io.WriteString(s.w, tail)
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// marshal encodes v without HTML escaping or a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
