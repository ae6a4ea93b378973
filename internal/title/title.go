// Package title canonicalizes section titles so that the same heading can be
// recognized in a table of contents, in the body text, and across extraction
// noise (case, punctuation, numbering, ligatures).
package title

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// leadingMarker matches one structural prefix: a chapter/part/section keyword,
// a section sign, an upper-case Roman numeral marker or a numeric outline
// prefix such as "3.2." or "3.2 ".
var leadingMarker = regexp.MustCompile(
	`^(?:(?i:глава|chapter|часть|part|раздел|section)(?:[^\p{L}]|$)|§|[IVXLCDM]+\.|\d+(?:\.\d+)*(?:\.|\s))\s*`,
)

var trailingFiller = regexp.MustCompile(`[\s.…_·]+$`)

// Normalize lower-cases s and removes every rune that is not a letter or a
// digit. Compatibility forms are folded first, so "ﬁgure" and "Figure" agree.
//
// One pass is not always a fixed point: dropping punctuation can bring
// composable letters together ("ᄀ-ᅡ" becomes "가", which NFKC composes to
// "가"). Passes repeat until the output stops changing, which takes at most
// a couple of rounds.
func Normalize(s string) string {
	for i := 0; i < 4; i++ {
		next := normalizeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func normalizeOnce(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clean strips leading structural markers ("Chapter 3.", "§", "IV.", "3.2.")
// and trailing filler punctuation, so "Chapter 3. Title ..." becomes "Title".
// Markers are stripped until none is left.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := leadingMarker.ReplaceAllString(s, "")
		next = strings.TrimSpace(trailingFiller.ReplaceAllString(next, ""))
		if next == s {
			return s
		}
		s = next
	}
}

// Tokens splits s into runs of letters, digits and the section sign. Anything
// else (spaces, hyphens, punctuation, line breaks) is a separator.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '§')
	})
}
