// Package locate maps a linearized table of contents onto character spans of
// the full document text.
package locate

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/title"
)

// ErrEmptyText is returned when the full text is empty or whitespace only.
var ErrEmptyText = errors.New("locate: empty text")

// Options tunes the boundary search.
type Options struct {
	// BoundaryFallback is the search start used when no TOC title is found in
	// the boundary window.
	BoundaryFallback int
	// BoundaryWindow is the leading fraction of the text searched for the TOC.
	BoundaryWindow float64
	// BoundaryCap caps the boundary window in bytes.
	BoundaryCap int
	// BoundaryItems is how many trailing sequence items are looked up.
	BoundaryItems int
	// MinBoundaryTitleLen skips cleaned titles shorter than this many runes.
	MinBoundaryTitleLen int
}

func DefaultOptions() Options {
	return Options{
		BoundaryFallback:    3000,
		BoundaryWindow:      0.2,
		BoundaryCap:         100_000,
		BoundaryItems:       5,
		MinBoundaryTitleLen: 5,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BoundaryFallback <= 0 {
		o.BoundaryFallback = def.BoundaryFallback
	}
	if o.BoundaryWindow <= 0 || o.BoundaryWindow > 1 {
		o.BoundaryWindow = def.BoundaryWindow
	}
	if o.BoundaryCap <= 0 {
		o.BoundaryCap = def.BoundaryCap
	}
	if o.BoundaryItems <= 0 {
		o.BoundaryItems = def.BoundaryItems
	}
	if o.MinBoundaryTitleLen <= 0 {
		o.MinBoundaryTitleLen = def.MinBoundaryTitleLen
	}
	return o
}

// Span is the located range of one sequence item. Start is where the heading
// begins, TitleEnd where the matched heading text ends and End where the next
// section starts (or the text ends).
type Span struct {
	Item     doctree.SequenceItem
	Start    int
	TitleEnd int
	End      int
}

// Content returns the section body: the text after the heading up to End.
func (s Span) Content(fullText string) string {
	return fullText[s.TitleEnd:s.End]
}

// Result holds the located spans in document order. Items that could not be
// found are omitted from Spans and reported in Warnings.
type Result struct {
	Spans    []Span
	Warnings []string
	Boundary int
}

// separator matches what may sit between two title tokens in extracted text:
// whitespace, punctuation, hyphenation and line breaks.
const separator = `[^\p{L}\p{N}]*?`

// titlePattern builds a case-insensitive pattern requiring the tokens of s in
// order. It returns nil when s has no tokens.
func titlePattern(s string) *regexp.Regexp {
	tokens := title.Tokens(s)
	if len(tokens) == 0 {
		return nil
	}
	for i, t := range tokens {
		tokens[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(tokens, separator))
}

// TOCBoundary returns the offset after which section headings are searched.
// It is the rightmost end of the first occurrence of any of the last few
// cleaned titles inside the leading window of the text; the printed TOC is
// expected there. Without a hit it falls back to opts.BoundaryFallback
// (3,000 by default). The fallback is deliberately clamped to the window so
// that a short text is not skipped past its own sections.
func TOCBoundary(seq []doctree.SequenceItem, fullText string, opts Options) int {
	if len(seq) == 0 {
		return 0
	}
	opts = opts.withDefaults()

	limit := min(int(float64(len(fullText))*opts.BoundaryWindow), opts.BoundaryCap)
	window := fullText[:limit]

	boundary := 0
	for _, item := range seq[max(0, len(seq)-opts.BoundaryItems):] {
		t := title.Clean(item.Title)
		if utf8.RuneCountInString(t) < opts.MinBoundaryTitleLen {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(t))
		if loc := re.FindStringIndex(window); loc != nil && loc[1] > boundary {
			boundary = loc[1]
		}
	}
	if boundary == 0 {
		boundary = min(opts.BoundaryFallback, limit)
	}
	return runeStart(fullText, boundary)
}

// runeStart moves off to the next rune boundary.
func runeStart(s string, off int) int {
	for off < len(s) && !utf8.RuneStart(s[off]) {
		off++
	}
	return off
}

// Locate finds each sequence item in fullText in document order. The search
// cursor starts at the TOC boundary and only moves forward; an item not found
// after the cursor is retried once from the boundary. A match starting inside
// a heading already taken by an earlier item is rejected.
func Locate(seq []doctree.SequenceItem, fullText string, opts Options) (Result, error) {
	if strings.TrimSpace(fullText) == "" {
		return Result{}, ErrEmptyText
	}
	l := &locator{text: fullText}
	l.boundary = TOCBoundary(seq, fullText, opts)
	l.cursor = l.boundary

	var res Result
	res.Boundary = l.boundary
	for _, item := range seq {
		raw := strings.TrimSpace(item.Title)
		if raw == "" {
			res.Warnings = append(res.Warnings, "skipped item with empty title")
			continue
		}
		start, end, dup := l.find(raw)
		if start < 0 {
			if dup {
				res.Warnings = append(res.Warnings, fmt.Sprintf("title %q only matched a heading already taken", raw))
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("title %q not found in text", raw))
			}
			continue
		}
		l.taken = append(l.taken, [2]int{start, end})
		l.cursor = max(l.cursor, end)
		res.Spans = append(res.Spans, Span{Item: item, Start: start, TitleEnd: end})
	}

	slices.SortStableFunc(res.Spans, func(a, b Span) int { return cmp.Compare(a.Start, b.Start) })
	for i := range res.Spans {
		end := len(fullText)
		if i+1 < len(res.Spans) {
			end = res.Spans[i+1].Start
		}
		res.Spans[i].End = end
		res.Spans[i].TitleEnd = min(res.Spans[i].TitleEnd, end)
	}
	return res, nil
}

type locator struct {
	text     string
	boundary int
	cursor   int
	taken    [][2]int
}

// find tries the raw title, then its cleaned form, each from the cursor and
// then from the boundary. dup reports that a match was rejected as taken.
func (l *locator) find(raw string) (start, end int, dup bool) {
	variants := []string{raw}
	if c := title.Clean(raw); c != "" && c != raw {
		variants = append(variants, c)
	}
	for _, v := range variants {
		re := titlePattern(v)
		if re == nil {
			continue
		}
		for _, from := range []int{l.cursor, l.boundary} {
			loc := re.FindStringIndex(l.text[from:])
			if loc == nil {
				continue
			}
			s, e := from+loc[0], from+loc[1]
			if l.isTaken(s) {
				dup = true
				continue
			}
			return s, e, false
		}
	}
	return -1, -1, dup
}

func (l *locator) isTaken(off int) bool {
	for _, t := range l.taken {
		if off >= t[0] && off < t[1] {
			return true
		}
	}
	return false
}
