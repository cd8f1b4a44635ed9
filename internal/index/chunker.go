package index

import (
	"context"
	"sync"

	"github.com/ricesearch/rice-chunk/internal/ast"
	"github.com/ricesearch/rice-chunk/internal/chunk"
	"github.com/ricesearch/rice-chunk/internal/pkg/errors"
	"github.com/ricesearch/rice-chunk/internal/pkg/hash"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
	"github.com/ricesearch/rice-chunk/internal/profile"
)

// Record is one chunk of a document, ready for a sink.
type Record struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	// DocumentHash is the content hash of the whole source file.
	DocumentHash string `json:"document_hash"`
	Path         string `json:"path"`
	Language     string `json:"language"`
	Index        int    `json:"index"`

	// Content is the rendered chunk: overlap, preamble (or expansion
	// header) and core text.
	Content string `json:"content"`
	// Core is the chunk's own source text.
	Core      string      `json:"core"`
	StartByte int         `json:"start_byte"`
	EndByte   int         `json:"end_byte"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Ancestors chunk.Chain `json:"ancestors,omitempty"`

	Unit         chunk.Unit `json:"unit"`
	Size         int        `json:"size"`
	CoreSize     int        `json:"core_size"`
	PreambleSize int        `json:"preamble_size"`
	NodeCount    int        `json:"node_count"`

	Oversized bool            `json:"oversized,omitempty"`
	Warnings  []chunk.Warning `json:"warnings,omitempty"`

	Template Template       `json:"template"`
	Metadata map[string]any `json:"metadata"`
	Hash     string         `json:"hash"`
}

// LineCount is the number of lines the core spans.
func (r *Record) LineCount() int {
	if r.EndLine < r.StartLine {
		return 0
	}
	return r.EndLine - r.StartLine + 1
}

// CodeWindow returns the record in its template's retrieval shape.
func (r *Record) CodeWindow() map[string]any {
	return r.Template.CodeWindow(r)
}

// ChunkerConfig holds configuration for the chunker.
type ChunkerConfig struct {
	Options chunk.Options

	// Template selects record metadata. Empty means default.
	Template Template

	// Expand prepends the file path and ancestors as a fenced header
	// instead of the plain preamble.
	Expand bool

	// FallbackPlaintext chunks unknown languages, and languages without a
	// grammar, as plain text instead of failing.
	FallbackPlaintext bool

	Repo RepoInfo
}

// Chunker splits documents into chunk records.
type Chunker struct {
	config   ChunkerConfig
	parser   ast.Parser
	registry *profile.Registry
	log      *logger.Logger

	// bound caches profiles with their parser's kind set applied
	bound sync.Map
}

// NewChunker creates a new chunker. A nil registry uses the built-in
// profiles; a nil logger discards output.
func NewChunker(cfg ChunkerConfig, reg *profile.Registry, log *logger.Logger) (*Chunker, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := ParseTemplate(string(cfg.Template))
	if err != nil {
		return nil, err
	}
	cfg.Template = tmpl
	if reg == nil {
		reg = profile.NewRegistry()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Chunker{
		config:   cfg,
		parser:   ast.NewParser(),
		registry: reg,
		log:      log,
	}, nil
}

// Registry returns the profile registry used for lookups.
func (c *Chunker) Registry() *profile.Registry {
	return c.registry
}

// Parser returns the syntax parser.
func (c *Chunker) Parser() ast.Parser {
	return c.parser
}

// withParserKinds binds p to the kinds its parser can emit, so nodes the
// profile has no rule for and the parser does not list are unknown.
func (c *Chunker) withParserKinds(p *profile.Profile) *profile.Profile {
	if bound, ok := c.bound.Load(p); ok {
		return bound.(*profile.Profile)
	}
	bound, _ := c.bound.LoadOrStore(p, p.WithKinds(ast.NodeKinds(p.Parser())))
	return bound.(*profile.Profile)
}

// ChunkDocument splits a document into records. Errors from the chunking
// core are fatal for the document: no partial records are returned.
func (c *Chunker) ChunkDocument(ctx context.Context, doc *Document) ([]Record, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	log := c.log.WithFile(doc.Path, doc.Language)

	p, err := c.registry.Lookup(doc.Language)
	if err != nil {
		if !c.config.FallbackPlaintext || !errors.IsUnsupportedLanguage(err) {
			return nil, err
		}
		log.Debug("Unknown language, chunking as plain text")
		if p, err = c.registry.Lookup(profile.LangPlaintext); err != nil {
			return nil, err
		}
	}

	src := []byte(doc.Content)
	root, err := c.parser.Parse(ctx, src, p.Parser())
	if err != nil {
		if !c.config.FallbackPlaintext || !errors.IsUnsupportedLanguage(err) {
			return nil, err
		}
		log.Warn("No grammar for language, chunking lines", "parser", p.Parser())
		root = ast.ParseLines(src)
	} else {
		p = c.withParserKinds(p)
	}
	if n := ast.CountErrors(root); n > 0 {
		log.Debug("Syntax tree has error nodes", "count", n)
	}

	chunks, err := chunk.Build(src, root, p, c.config.Options)
	if err != nil {
		return nil, err
	}

	style, _ := chunk.ParseStyle(string(c.config.Options.Style))
	docID := doc.ID()
	records := make([]Record, 0, len(chunks))
	for _, ch := range chunks {
		for _, w := range ch.Warnings {
			log.Debug("Chunk warning", "kind", w.Kind, "node", w.NodeKind, "offset", w.Offset)
		}
		if ch.Oversized {
			log.Debug("Oversized chunk", "index", ch.Index, "size", ch.CoreSize, "budget", c.config.Options.Budget)
		}

		rec := Record{
			ID:           hash.ChunkID(doc.Path, ch.Core.Start, ch.Core.End),
			DocumentID:   docID,
			DocumentHash: doc.Hash,
			Path:         doc.Path,
			Language:     p.Name(),
			Index:        ch.Index,
			Core:         ch.Text,
			StartByte:    ch.Core.Start,
			EndByte:      ch.Core.End,
			StartLine:    ch.StartLine,
			EndLine:      ch.EndLine,
			Ancestors:    ch.Ancestors,
			Unit:         ch.Unit,
			Size:         ch.Size,
			CoreSize:     ch.CoreSize,
			PreambleSize: ch.PreambleSize,
			NodeCount:    ch.Nodes,
			Oversized:    ch.Oversized,
			Warnings:     ch.Warnings,
			Template:     c.config.Template,
		}
		if c.config.Expand {
			// the header stands in for the preamble, so it follows the overlap
			rec.Content = ch.OverlapPrefix() + c.config.Template.Expand(doc.Path, ch.Ancestors.Render(style), ch.Text)
		} else {
			rec.Content = ch.Render()
		}
		rec.Metadata = c.config.Template.Metadata(&rec, c.config.Repo)
		rec.Hash = hash.ContentHash(doc.Path, rec.StartByte, rec.EndByte, rec.Content)
		records = append(records, rec)
	}

	log.Debug("Chunked document", "chunks", len(records), "bytes", doc.Size)
	return records, nil
}
