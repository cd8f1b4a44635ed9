package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Open creates the sink described by opts. Stream formats without a path
// write to stdout, which is left open on Close.
func Open(ctx context.Context, opts Options, stdout io.Writer) (Sink, error) {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	opts.Format = format
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if format == FormatSQLite {
		if err := ensureDir(opts.Path); err != nil {
			return nil, err
		}
		return NewSQLiteSink(ctx, opts.Path)
	}

	var w io.Writer = nopCloser{stdout}
	if !opts.IsStdout() {
		if err := ensureDir(opts.Path); err != nil {
			return nil, err
		}
		f, err := os.Create(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w = f
	}

	if format == FormatJSON {
		return NewJSONSink(w, opts.CodeWindows), nil
	}
	return NewJSONLSink(w, opts.CodeWindows), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// nopCloser hides any Close method of the wrapped writer.
type nopCloser struct {
	io.Writer
}
