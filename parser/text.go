package parser

import (
	"context"
	"fmt"
	"os"
)

// TextParser handles markdown, plain text and reStructuredText files.
// The content is returned verbatim.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"md", "txt", "rst"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return &ParseResult{Text: string(data), Method: "native"}, nil
}
