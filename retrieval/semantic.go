package retrieval

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/brunobiangulo/docai/store"
)

// Encoder turns text into an embedding vector.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// VectorSource lists sections holding an embedding of a given dimension.
// *store.Store satisfies it.
type VectorSource interface {
	EmbeddedSections(ctx context.Context, dim int) ([]store.Section, error)
}

// SemanticConfig controls the embedding ranker.
type SemanticConfig struct {
	Dim       int     // Embedding dimension. Default 384.
	MinChars  int     // Shorter texts embed to the zero vector. Default 10.
	Threshold float64 // Minimum similarity kept, exclusive. Default 0.3.
}

// Semantic ranks sections by cosine similarity between the query embedding
// and each stored section embedding.
type Semantic struct {
	src VectorSource
	enc Encoder
	cfg SemanticConfig
}

// NewSemantic returns an embedding ranker. Zero-value config fields are
// replaced with defaults.
func NewSemantic(src VectorSource, enc Encoder, cfg SemanticConfig) *Semantic {
	if cfg.Dim <= 0 {
		cfg.Dim = 384
	}
	if cfg.MinChars <= 0 {
		cfg.MinChars = 10
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.3
	}
	return &Semantic{src: src, enc: enc, cfg: cfg}
}

func (s *Semantic) Name() string { return "semantic" }

// Dim returns the configured embedding dimension.
func (s *Semantic) Dim() int { return s.cfg.Dim }

// Embed returns the embedding of text. Texts shorter than MinChars runes
// map to the zero vector without calling the encoder.
func (s *Semantic) Embed(ctx context.Context, text string) ([]float32, error) {
	if utf8.RuneCountInString(text) < s.cfg.MinChars {
		return make([]float32, s.cfg.Dim), nil
	}
	vec, err := s.enc.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vec) != s.cfg.Dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbedding, len(vec), s.cfg.Dim)
	}
	return vec, nil
}

// Search embeds query and returns the sections whose similarity exceeds
// the threshold, best first. Sections without an embedding of the
// configured dimension are never considered.
func (s *Semantic) Search(ctx context.Context, query string, limit int) ([]ScoredSection, error) {
	qvec, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	secs, err := s.src.EmbeddedSections(ctx, s.cfg.Dim)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	var results []ScoredSection
	for _, sec := range secs {
		sim := Similarity(qvec, sec.Embedding)
		if sim > s.cfg.Threshold {
			results = append(results, ScoredSection{Section: sec, Score: sim})
		}
	}

	return rankAndTruncate(results, limit), nil
}
