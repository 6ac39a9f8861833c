// Package sectioner splits document text into titled sections.
//
// Markdown headings take priority. Documents without headings are split on
// blank lines, and documents without paragraphs become a single section.
package sectioner

import (
	"fmt"
	"regexp"
	"strings"
)

// WholeDocumentTitle is the title given to the single section produced when
// a document has neither headings nor paragraphs.
const WholeDocumentTitle = "Document complet"

var (
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\S.*$`)
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
)

// Section is a titled slice of a document.
type Section struct {
	Title string
	Body  string
}

// Config controls the sectioning behaviour.
type Config struct {
	// MaxChars splits paragraphs longer than this many runes into
	// fixed-size sections. 0 disables the split.
	MaxChars int
}

// Sectioner splits text according to its Config.
type Sectioner struct {
	cfg Config
}

// New returns a Sectioner with the given configuration.
// Negative values are treated as zero.
func New(cfg Config) *Sectioner {
	if cfg.MaxChars < 0 {
		cfg.MaxChars = 0
	}
	return &Sectioner{cfg: cfg}
}

// Split splits content with the default configuration.
func Split(content string) []Section {
	return New(Config{}).Split(content)
}

// Split returns the sections of content in document order. The result is
// never empty, even for empty input.
func (s *Sectioner) Split(content string) []Section {
	if secs := splitHeadings(content); len(secs) > 0 {
		return secs
	}
	if secs := s.splitParagraphs(content); len(secs) > 0 {
		return secs
	}
	return []Section{{Title: WholeDocumentTitle, Body: content}}
}

// splitHeadings returns one section per markdown heading. Text before the
// first heading is not part of any section.
func splitHeadings(content string) []Section {
	locs := headingRe.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return nil
	}

	secs := make([]Section, 0, len(locs))
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		secs = append(secs, Section{
			Title: headingTitle(content[loc[0]:loc[1]]),
			Body:  strings.TrimSpace(content[loc[1]:end]),
		})
	}
	return secs
}

func headingTitle(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

func (s *Sectioner) splitParagraphs(content string) []Section {
	var secs []Section
	for _, para := range paragraphRe.Split(content, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if s.cfg.MaxChars > 0 && runeLen(para) > s.cfg.MaxChars {
			for _, chunk := range fixedChunks(para, s.cfg.MaxChars) {
				if strings.TrimSpace(chunk) == "" {
					continue
				}
				secs = append(secs, Section{
					Title: fmt.Sprintf("Section %d: %s...", len(secs)+1, firstLine(chunk, 50)),
					Body:  chunk,
				})
			}
			continue
		}
		secs = append(secs, Section{
			Title: fmt.Sprintf("Section %d: %s...", len(secs)+1, firstWords(para, 5)),
			Body:  para,
		})
	}
	return secs
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func firstLine(text string, maxRunes int) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if r := []rune(line); len(r) > maxRunes {
		line = string(r[:maxRunes])
	}
	return line
}

// fixedChunks cuts text into pieces of at most size runes.
func fixedChunks(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}
