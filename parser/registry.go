package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps file formats (lower-case extensions without the dot) to
// parsers. It implements Loader.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a Registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&TextParser{}, &PDFParser{}, &XLSXParser{}, &DOCXParser{}, &PPTXParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser for format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// Register adds or replaces the parser for format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// SupportedFormats returns the registered formats, sorted.
func (r *Registry) SupportedFormats() []string {
	formats := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Supports reports whether path has an extension with a registered parser.
func (r *Registry) Supports(path string) bool {
	_, ok := r.parsers[Format(path)]
	return ok
}

// Load parses path with the parser registered for its extension and
// returns the extracted text.
func (r *Registry) Load(ctx context.Context, path string) (string, error) {
	p, err := r.Get(Format(path))
	if err != nil {
		return "", err
	}
	res, err := p.Parse(ctx, path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Format returns the lower-case extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
