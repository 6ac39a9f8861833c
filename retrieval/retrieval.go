// Package retrieval ranks stored sections against a question.
//
// Two rankers are provided. Lexical counts query keywords found in each
// section; Semantic compares embedding vectors by cosine similarity.
package retrieval

import (
	"context"
	"errors"
	"sort"

	"github.com/brunobiangulo/docai/store"
)

// DefaultLimit is the number of sections returned when a caller passes a
// non-positive limit.
const DefaultLimit = 5

// ErrEmbedding is returned when the embedding provider fails or returns a
// vector of the wrong dimension.
var ErrEmbedding = errors.New("docai: embedding failed")

// ScoredSection is a section with the relevance score assigned by a ranker.
// Lexical scores are keyword hit counts; semantic scores are cosine
// similarities.
type ScoredSection struct {
	store.Section
	Score float64 `json:"score"`
}

// Ranker returns the sections most relevant to a query, best first.
type Ranker interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]ScoredSection, error)
}

// rankAndTruncate sorts by score, descending, keeping discovery order among
// ties, and cuts the result to limit.
func rankAndTruncate(results []ScoredSection, limit int) []ScoredSection {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
