package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/docai/store"
)

// MinTokenLen is the shortest query token, in runes, the lexical ranker
// searches for.
const MinTokenLen = 3

// KeywordSource finds sections by case-insensitive substring.
// *store.Store satisfies it.
type KeywordSource interface {
	SectionsContaining(ctx context.Context, token string) ([]store.Section, error)
}

// Lexical scores each section by the number of query tokens it contains.
type Lexical struct {
	src KeywordSource
}

// NewLexical returns a lexical ranker over src.
func NewLexical(src KeywordSource) *Lexical {
	return &Lexical{src: src}
}

func (l *Lexical) Name() string { return "lexical" }

// Search lower-cases and whitespace-splits query, drops tokens shorter than
// MinTokenLen, and adds one point to a section for every token found in its
// title or content. A repeated query token counts again. Queries with no
// usable token return an empty result without touching the store.
func (l *Lexical) Search(ctx context.Context, query string, limit int) ([]ScoredSection, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var results []ScoredSection
	index := make(map[int64]int)

	for _, tok := range tokens {
		secs, err := l.src.SectionsContaining(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("lexical search for %q: %w", tok, err)
		}
		if len(secs) == 0 {
			slog.Debug("lexical: no section contains token", "token", tok)
		}
		for _, sec := range secs {
			if i, ok := index[sec.ID]; ok {
				results[i].Score++
				continue
			}
			index[sec.ID] = len(results)
			results = append(results, ScoredSection{Section: sec, Score: 1})
		}
	}

	return rankAndTruncate(results, limit), nil
}

// Tokenize returns the lower-cased whitespace-separated tokens of query
// that are at least MinTokenLen runes long, in query order.
func Tokenize(query string) []string {
	var tokens []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) >= MinTokenLen {
			tokens = append(tokens, w)
		}
	}
	return tokens
}
