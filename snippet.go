package docai

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// snippetMaxRunes bounds the length of a source snippet.
const snippetMaxRunes = 240

// sourceSnippet returns the sentence of content sharing the most words with
// question, or the opening of content when nothing overlaps. Long results
// are cut on a word boundary and end with "...".
func sourceSnippet(content, question string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	sentences := splitSentences(content)
	best := sentences[0]
	if qwords := keywords(question); len(qwords) > 0 {
		bestScore := 0
		for _, s := range sentences {
			score := 0
			for w := range keywords(s) {
				if qwords[w] {
					score++
				}
			}
			if score > bestScore {
				best, bestScore = s, score
			}
		}
	}
	return truncateRunes(best, snippetMaxRunes)
}

// keywords returns the lower-cased words of text with at least four runes,
// minus common English and French stop words.
func keywords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(w) >= 4 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// splitSentences splits at '.', '?' or '!' followed by whitespace, and at
// line breaks. It always returns at least one element for non-empty text.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if (r == '.' || r == '?' || r == '!') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()

	if len(sentences) == 0 {
		sentences = append(sentences, text)
	}
	return sentences
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

var stopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true,
	"have": true, "been": true, "were": true, "they": true,
	"their": true, "will": true, "would": true, "could": true,
	"should": true, "about": true, "which": true, "there": true,
	"what": true, "when": true, "where": true, "does": true,
	"your": true, "into": true, "also": true, "only": true,
	"dans": true, "pour": true, "avec": true, "sont": true,
	"est-ce": true, "quel": true, "quelle": true, "quels": true,
	"quelles": true, "comment": true, "cette": true, "leur": true,
	"nous": true, "vous": true, "mais": true, "plus": true,
}
