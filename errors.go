package docai

import (
	"errors"

	"github.com/brunobiangulo/docai/parser"
	"github.com/brunobiangulo/docai/retrieval"
	"github.com/brunobiangulo/docai/store"
)

var (
	// ErrDocumentNotFound is returned when the path to ingest does not exist
	// or is not a regular file.
	ErrDocumentNotFound = errors.New("docai: document not found")

	// ErrUnsupportedFormat is returned for file extensions no reader handles.
	ErrUnsupportedFormat = parser.ErrUnsupportedFormat

	// ErrParsingFailed is returned when a reader cannot extract text.
	ErrParsingFailed = errors.New("docai: parsing failed")

	// ErrEmptyContent is returned when a document yields no text at all.
	ErrEmptyContent = errors.New("docai: document is empty or unreadable")

	// ErrEmbeddingFailed is returned when the embedding provider fails.
	ErrEmbeddingFailed = retrieval.ErrEmbedding

	// ErrLLMRequestFailed is returned when the answer generator fails.
	ErrLLMRequestFailed = errors.New("docai: LLM request failed")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = store.ErrClosed

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docai: invalid configuration")
)
