package retrieval

import (
	"context"
	"fmt"

	"github.com/brunobiangulo/docai/llm"
)

// ProviderEncoder adapts an llm.Provider to Encoder.
type ProviderEncoder struct {
	Provider llm.Provider
}

// NewProviderEncoder returns an Encoder backed by p.
func NewProviderEncoder(p llm.Provider) *ProviderEncoder {
	return &ProviderEncoder{Provider: p}
}

func (e *ProviderEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("provider returned %d embeddings for 1 input", len(vecs))
	}
	return vecs[0], nil
}
