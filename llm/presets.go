package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// preset holds the defaults of a named endpoint. Base URL and model in the
// config override it.
type preset struct {
	baseURL    string
	model      string
	pathPrefix string
	// nativeEmbed sends embeddings to Ollama's batched /api/embed instead
	// of the OpenAI-compatible route.
	nativeEmbed bool
}

// presets are selected by Config.Provider.
var presets = map[string]preset{
	"ollama":     {baseURL: "http://localhost:11434", pathPrefix: "/v1", nativeEmbed: true},
	"lmstudio":   {baseURL: "http://localhost:1234", pathPrefix: "/v1"},
	"openai":     {baseURL: "https://api.openai.com", model: "gpt-4o-mini", pathPrefix: "/v1"},
	"groq":       {baseURL: "https://api.groq.com/openai", model: "llama-3.3-70b-versatile", pathPrefix: "/v1"},
	"openrouter": {baseURL: "https://openrouter.ai/api", model: "openai/gpt-4o-mini", pathPrefix: "/v1"},
	"xai":        {baseURL: "https://api.x.ai", model: "grok-3-mini", pathPrefix: "/v1"},
	// Gemini serves the OpenAI routes without the /v1 segment.
	"gemini": {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-2.5-flash"},
}

type presetProvider struct {
	base        openAICompatClient
	nativeEmbed bool
}

func newPreset(p preset, cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.model
	}
	base := newOpenAICompatClient(cfg)
	base.pathPrefix = p.pathPrefix
	return &presetProvider{base: base, nativeEmbed: p.nativeEmbed}
}

func (p *presetProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *presetProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.nativeEmbed {
		return p.ollamaEmbed(ctx, texts)
	}
	return p.base.embed(ctx, texts)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *presetProvider) ollamaEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	respBody, err := p.base.doPost(ctx, "/api/embed", ollamaEmbedRequest{
		Model: p.base.cfg.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding ollama embed response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs",
			len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}
