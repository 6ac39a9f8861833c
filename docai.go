// Package docai answers questions about a folder of documents.
//
// Documents are split into sections and stored in SQLite. A question is
// matched against the stored sections, either by keyword counting or by
// embedding similarity, and the best sections are handed to a chat model
// as context.
package docai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/docai/llm"
	"github.com/brunobiangulo/docai/parser"
	"github.com/brunobiangulo/docai/retrieval"
	"github.com/brunobiangulo/docai/sectioner"
	"github.com/brunobiangulo/docai/store"
)

// Engine is the main entry point for document question answering.
type Engine interface {
	// IngestFolder ingests every supported file directly inside dir.
	// A missing dir is created and yields 0.
	IngestFolder(ctx context.Context, dir string) (int, error)

	// IngestDocument stores one document. It reports whether at least one
	// new section was stored; an already known path yields false.
	IngestDocument(ctx context.Context, path string) (bool, error)

	// Ask answers a question from the stored sections.
	Ask(ctx context.Context, question string) (*Answer, error)

	// ReloadAll forgets every document and ingests the source folder again.
	ReloadAll(ctx context.Context) (int, error)

	// IndexEmbeddings computes embeddings for sections stored without one.
	IndexEmbeddings(ctx context.Context) (int, error)

	// SectionCount returns the number of stored sections.
	SectionCount(ctx context.Context) (int, error)

	// KnowledgeSummary lists what has been learned, grouped by document.
	KnowledgeSummary(ctx context.Context) (string, error)

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]Document, error)

	// Stats returns store counters.
	Stats(ctx context.Context) (*Stats, error)

	// Supports reports whether path has a format the engine can ingest.
	Supports(path string) bool

	// Close cleanly shuts down the engine.
	Close() error
}

// Answer modes.
const (
	ModeSummary          = "summary"
	ModeAnswered         = "answered"
	ModeNoResults        = "no_results"
	ModeGenerationFailed = "generation_failed"
)

// Answer represents the result of a question.
type Answer struct {
	Text    string   `json:"text"`
	Mode    string   `json:"mode"`
	Ranker  string   `json:"ranker,omitempty"`
	Sources []Source `json:"sources"`

	// Err wraps ErrLLMRequestFailed or ErrEmbeddingFailed when Mode is
	// ModeGenerationFailed.
	Err error `json:"-"`
}

// Source is a section used as context for an answer.
type Source struct {
	SectionID  int64   `json:"section_id"`
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}

// Document is an ingested document.
type Document struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Sections int    `json:"sections"`
}

// Stats holds store counters.
type Stats = store.Stats

// Option customises an engine at construction.
type Option func(*options)

type options struct {
	generator Generator
	encoder   retrieval.Encoder
	loader    parser.Loader
}

// WithGenerator replaces the chat provider built from Config.Chat.
func WithGenerator(g Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithEncoder replaces the embedding provider built from Config.Embedding.
func WithEncoder(enc retrieval.Encoder) Option {
	return func(o *options) { o.encoder = enc }
}

// WithLoader replaces the built-in document readers.
func WithLoader(l parser.Loader) Option {
	return func(o *options) { o.loader = l }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	generator Generator
	loader    parser.Loader
	splitter  *sectioner.Sectioner
	lexical   *retrieval.Lexical
	semantic  *retrieval.Semantic // nil when embeddings are disabled
}

// New creates a docai engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if cfg.MaxResults == 0 {
		cfg.MaxResults = retrieval.DefaultLimit
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 384
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.3
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = "documentation"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gen := o.generator
	if gen == nil {
		chatLLM, err := llm.NewProvider(cfg.Chat.llmConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: chat provider: %v", ErrInvalidConfig, err)
		}
		gen = NewChatGenerator(chatLLM, cfg.Chat.Model)
	}

	enc := o.encoder
	if enc == nil && cfg.Embedding.Enabled() {
		embedLLM, err := llm.NewProvider(cfg.Embedding.llmConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: embedding provider: %v", ErrInvalidConfig, err)
		}
		enc = retrieval.NewProviderEncoder(embedLLM)
	}

	loader := o.loader
	if loader == nil {
		loader = parser.NewRegistry()
	}

	dbPath := cfg.resolveDBPath()
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e := &engine{
		cfg:       cfg,
		store:     s,
		generator: gen,
		loader:    loader,
		splitter:  sectioner.New(sectioner.Config{MaxChars: cfg.MaxSectionChars}),
		lexical:   retrieval.NewLexical(s),
	}
	if enc != nil {
		e.semantic = retrieval.NewSemantic(s, enc, retrieval.SemanticConfig{
			Dim:       cfg.EmbeddingDim,
			Threshold: cfg.SimilarityThreshold,
		})
	}

	slog.Debug("engine ready",
		"db", dbPath,
		"source_dir", cfg.SourceDir,
		"embeddings", e.semantic != nil,
	)
	return e, nil
}

func (c LLMConfig) llmConfig() llm.Config {
	return llm.Config{
		Provider:   c.Provider,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		MaxRetries: c.MaxRetries,
	}
}

// SectionCount returns the number of stored sections.
func (e *engine) SectionCount(ctx context.Context) (int, error) {
	return e.store.CountSections(ctx)
}

// ListDocuments returns all ingested documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document{ID: d.ID, Filename: d.Filename, Path: d.Path, Sections: d.Sections}
	}
	return result, nil
}

// Stats returns store counters.
func (e *engine) Stats(ctx context.Context) (*Stats, error) {
	return e.store.Stats(ctx)
}

func (e *engine) Supports(path string) bool {
	return e.loader.Supports(path)
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}
