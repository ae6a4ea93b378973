// Package cleanup repairs the text of located sections, either with fast
// text rules or with an LLM, and extracts a table of contents with an LLM
// when the heuristic parser finds none.
package cleanup

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docstruct/internal/title"
)

var (
	hyphenBreak    = regexp.MustCompile(`(\p{L}+)-\n\s*(\p{L}+)`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
	pageNumberLine = regexp.MustCompile(`^[-–—\s]*\d{1,4}[-–—\s]*$`)
)

// Fast cleans section content with text rules only: a heading line repeating
// the section title is dropped, hyphenated line breaks are joined, lines
// holding only a page number are removed and runs of blank lines collapse to
// one.
func Fast(content, sectionTitle string) string {
	s := strings.TrimSpace(content)
	s = dropLeadingTitle(s, sectionTitle)
	s = hyphenBreak.ReplaceAllString(s, "$1$2")

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if pageNumberLine.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	s = strings.Join(kept, "\n")

	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func dropLeadingTitle(s, sectionTitle string) string {
	first, rest, _ := strings.Cut(s, "\n")
	n := title.Normalize(first)
	if n == "" {
		return s
	}
	if n == title.Normalize(sectionTitle) || n == title.Normalize(title.Clean(sectionTitle)) {
		return strings.TrimSpace(rest)
	}
	return s
}
