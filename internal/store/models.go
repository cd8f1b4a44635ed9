// Package store writes chunk records to their destination: JSON Lines or
// a JSON array on a stream, or a SQLite database.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/pkg/errors"
)

// Sink receives records in order. Close flushes and releases the
// destination; a sink must not be written after Close.
type Sink interface {
	Write(ctx context.Context, records []index.Record) error
	Close() error
}

// Format names an output format.
type Format string

const (
	FormatJSONL  Format = "jsonl"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSONL, FormatJSON, FormatSQLite}

// ParseFormat parses a format name. Empty selects JSON Lines.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatJSONL, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", errors.ValidationError(fmt.Sprintf("unsupported output format %q (want one of %v)", s, Formats))
}

// Options configures a sink.
type Options struct {
	Format Format

	// Path is the output file. Empty or "-" writes stream formats to
	// stdout; SQLite requires a path.
	Path string

	// CodeWindows writes each record in its metadata template's retrieval
	// shape instead of the full record. Ignored by SQLite, which stores
	// both.
	CodeWindows bool
}

// IsStdout reports whether the options select standard output.
func (o Options) IsStdout() bool {
	return o.Path == "" || o.Path == "-"
}

// Validate checks the options.
func (o Options) Validate() error {
	var errs []string
	if _, err := ParseFormat(string(o.Format)); err != nil {
		errs = append(errs, err.Error())
	}
	if o.Format == FormatSQLite && o.IsStdout() {
		errs = append(errs, "sqlite output requires a file path")
	}
	if len(errs) > 0 {
		return errors.ValidationError("invalid output options: " + strings.Join(errs, "; "))
	}
	return nil
}
