// Package index turns source files into chunk records: it detects the
// language, parses, chunks under the language profile, and attaches
// metadata for downstream retrieval.
package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ricesearch/rice-chunk/internal/pkg/errors"
	"github.com/ricesearch/rice-chunk/internal/pkg/hash"
	"github.com/ricesearch/rice-chunk/internal/profile"
)

// Document represents a source file to be chunked.
type Document struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
}

// NewDocument creates a new document from path and content.
func NewDocument(path, content, language string) *Document {
	return &Document{
		Path:     path,
		Content:  content,
		Language: language,
		Hash:     ComputeHash(content),
		Size:     int64(len(content)),
	}
}

// ID returns the deterministic document ID.
func (d *Document) ID() string {
	return hash.DocumentID(d.Path, d.Hash)
}

// ComputeHash computes SHA256 hash of content.
func ComputeHash(content string) string {
	return hash.SHA256String(content)
}

// plainNames are extensionless files chunked as plain text.
var plainNames = map[string]bool{
	"readme":    true,
	"license":   true,
	"licence":   true,
	"changelog": true,
	"authors":   true,
	"notice":    true,
	"todo":      true,
}

// DetectLanguage detects the language of path from its extension using the
// profiles registered in reg. It returns "" when no profile claims the file.
func DetectLanguage(path string, reg *profile.Registry) string {
	if lang, ok := reg.ForExtension(filepath.Ext(path)); ok {
		return lang
	}

	base := strings.ToLower(filepath.Base(path))
	if plainNames[base] {
		return profile.LangPlaintext
	}
	return ""
}

// Content limits
const (
	MaxDocumentSize = 10 * 1024 * 1024 // 10MB
	MaxPathLength   = 1024
)

// ValidateDocument validates a document for chunking.
func ValidateDocument(doc *Document) error {
	if doc.Path == "" {
		return errors.ValidationError("document path cannot be empty")
	}

	if len(doc.Path) > MaxPathLength {
		return errors.ValidationError(fmt.Sprintf("path exceeds maximum length of %d", MaxPathLength))
	}

	if doc.Size > MaxDocumentSize {
		return errors.ValidationError(fmt.Sprintf("document size %d exceeds maximum of %d bytes", doc.Size, MaxDocumentSize))
	}

	return nil
}
