package docai

import (
	"context"
	"fmt"
	"strings"

	"github.com/brunobiangulo/docai/store"
)

// EmptyKnowledgeMessage is the summary of a store without sections.
const EmptyKnowledgeMessage = "I have not learned anything yet. No document has been processed."

// KnowledgeSummary lists the learned section titles grouped by document.
func (e *engine) KnowledgeSummary(ctx context.Context) (string, error) {
	count, err := e.store.CountSections(ctx)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return EmptyKnowledgeMessage, nil
	}

	groups, err := e.store.SectionTitles(ctx)
	if err != nil {
		return "", err
	}
	return formatSummary(count, groups), nil
}

func formatSummary(sections int, groups []store.DocumentTitles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have learned %d sections from %d documents:\n", sections, len(groups))
	for _, g := range groups {
		fmt.Fprintf(&b, "\nDocument %s:\n", g.Filename)
		for _, t := range g.Titles {
			b.WriteString("- " + t + "\n")
		}
	}
	return b.String()
}

func queryLogEntry(question string, ans *Answer) store.QueryLog {
	return store.QueryLog{
		Question: question,
		Mode:     ans.Mode,
		Ranker:   ans.Ranker,
		Sections: len(ans.Sources),
		Answer:   ans.Text,
	}
}
