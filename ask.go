package docai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/docai/retrieval"
)

// NoResultsMessage is returned when no section matches a question.
const NoResultsMessage = "I could not find any relevant information in the learned documentation."

// generationErrorPrefix starts the answer text when the chat model fails.
const generationErrorPrefix = "Error while generating the answer: "

// knowledgePhrases mark questions about the knowledge base itself rather
// than its content. Matching is a case-insensitive substring test.
var knowledgePhrases = []string{
	"qu'as-tu appris", "que sais-tu", "quelles informations",
	"quelles connaissances", "qu'avez-vous appris", "que contient",
	"connaissance", "apprises", "documentation disponible",
	"quelles données", "base de connaissances", "résumé des",
	"documentation chargée", "documents chargés",
	"what have you learned", "what did you learn",
	"what is in the knowledge base", "what's in the knowledge base",
	"what is in your knowledge base", "what's in your knowledge base",
	"which documents are loaded", "which documents have you",
	"which documents did you", "what documents do you have",
	"what documentation do you have", "available documentation",
	"loaded documentation", "loaded documents", "summary of the documentation",
}

// IsKnowledgeQuestion reports whether question asks what has been learned.
func IsKnowledgeQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, p := range knowledgePhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// Ask answers question from the stored sections.
func (e *engine) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	if IsKnowledgeQuestion(question) {
		summary, err := e.KnowledgeSummary(ctx)
		if err != nil {
			return nil, err
		}
		ans := &Answer{Text: summary, Mode: ModeSummary}
		e.logQuery(ctx, question, ans)
		return ans, nil
	}

	ranker, err := e.selectRanker(ctx)
	if err != nil {
		return nil, err
	}

	results, err := ranker.Search(ctx, question, e.cfg.MaxResults)
	if errors.Is(err, ErrEmbeddingFailed) {
		slog.Error("ask: question embedding failed", "error", err)
		ans := &Answer{
			Text:   generationErrorPrefix + err.Error(),
			Mode:   ModeGenerationFailed,
			Ranker: ranker.Name(),
			Err:    err,
		}
		e.logQuery(ctx, question, ans)
		return ans, nil
	}
	if err != nil {
		return nil, fmt.Errorf("searching sections: %w", err)
	}

	slog.Info("ask: sections retrieved",
		"ranker", ranker.Name(),
		"results", len(results),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if len(results) == 0 {
		ans := &Answer{Text: NoResultsMessage, Mode: ModeNoResults, Ranker: ranker.Name()}
		e.logQuery(ctx, question, ans)
		return ans, nil
	}

	ans := &Answer{
		Mode:    ModeAnswered,
		Ranker:  ranker.Name(),
		Sources: buildSources(results, question),
	}

	systemPrompt := e.cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	text, err := e.generator.Generate(ctx, systemPrompt, BuildContext(results), question)
	if err != nil {
		slog.Error("ask: generation failed", "error", err)
		ans.Text = generationErrorPrefix + err.Error()
		ans.Mode = ModeGenerationFailed
		ans.Err = fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	} else {
		ans.Text = text
	}

	e.logQuery(ctx, question, ans)
	slog.Info("ask: complete",
		"mode", ans.Mode,
		"sources", len(ans.Sources),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return ans, nil
}

// selectRanker uses embeddings once at least one section carries a vector
// of the configured dimension, and keyword counting otherwise.
func (e *engine) selectRanker(ctx context.Context) (retrieval.Ranker, error) {
	if e.semantic == nil {
		return e.lexical, nil
	}
	n, err := e.store.CountEmbeddedSections(ctx, e.semantic.Dim())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return e.lexical, nil
	}
	return e.semantic, nil
}

// BuildContext renders ranked sections as the model context, best first.
func BuildContext(results []retrieval.ScoredSection) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = "--- " + r.Title + " ---\n" + r.Content
	}
	return strings.Join(parts, "\n\n")
}

func buildSources(results []retrieval.ScoredSection, question string) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			SectionID:  r.ID,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Title:      r.Title,
			Score:      r.Score,
			Snippet:    sourceSnippet(r.Content, question),
		}
	}
	return sources
}

// logQuery appends to the query log. Failures are logged, never returned.
func (e *engine) logQuery(ctx context.Context, question string, ans *Answer) {
	err := e.store.LogQuery(ctx, queryLogEntry(question, ans))
	if err != nil {
		slog.Warn("ask: failed to log query", "error", err)
	}
}
