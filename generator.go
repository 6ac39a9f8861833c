package docai

import (
	"context"

	"github.com/brunobiangulo/docai/llm"
)

// DefaultSystemPrompt instructs the chat model to stay within the context.
const DefaultSystemPrompt = "You are an expert assistant for technical documentation. " +
	"Answer only from the documentation files provided. " +
	"Use only the given context. " +
	"If the information is not in the context, say so clearly."

// Generator produces an answer to question from the retrieved context.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, sectionsContext, question string) (string, error)
}

// chatGenerator implements Generator over an llm.Provider chat endpoint.
type chatGenerator struct {
	provider llm.Provider
	model    string
}

// NewChatGenerator returns a Generator that sends one system and one user
// message per question.
func NewChatGenerator(p llm.Provider, model string) Generator {
	return &chatGenerator{provider: p, model: model}
}

func (g *chatGenerator) Generate(ctx context.Context, systemPrompt, sectionsContext, question string) (string, error) {
	resp, err := g.provider.Chat(ctx, llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(sectionsContext, question)},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func userPrompt(sectionsContext, question string) string {
	return "CONTEXT:\n" + sectionsContext + "\n\nQUESTION: " + question + "\n\n" +
		"Use only the context above to answer the question."
}
