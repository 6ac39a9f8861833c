// Package parser extracts plain text from document files.
package parser

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned for file extensions no parser handles.
var ErrUnsupportedFormat = errors.New("docai: unsupported document format")

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Text   string // Full document text; markdown headings mark structure
	Method string // "native"
	Pages  int    // Pages or sheets read, 0 when the format has none
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// Loader returns the text of a document, picking the reader by extension.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
	Supports(path string) bool
}
