package toc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchKind tags the strategy that recognized a TOC line.
type MatchKind int

const (
	NoMatch MatchKind = iota
	// LeaderMatch is "Title ........ 12": dot leaders, tabs, wide spacing or
	// underscores between the title and a trailing page number.
	LeaderMatch
	// NumberedHeading is "6 About the author": a leading page number followed
	// by a capitalized title and nothing after it.
	NumberedHeading
	// LooseMatch is "Chapter 3 Title 45": a structural marker at the start and
	// a page number separated by plain whitespace.
	LooseMatch
)

func (k MatchKind) String() string {
	switch k {
	case LeaderMatch:
		return "leader"
	case NumberedHeading:
		return "numbered"
	case LooseMatch:
		return "loose"
	}
	return "none"
}

// Match is the result of classifying one line. Title and Page are set for
// every kind except NoMatch.
type Match struct {
	Kind  MatchKind
	Title string
	Page  string
}

// HasPage reports whether the line carried a page number.
func (m Match) HasPage() bool {
	return m.Kind != NoMatch
}

// keywords shared by the structural-start and loose patterns.
const (
	sectionWords   = `глава|chapter|часть|part|раздел|section`
	frontBackWords = `введение|introduction|предисловие|preface|foreword|заключение|conclusion|` +
		`послесловие|afterword|эпилог|epilogue|пролог|prologue|об авторе|about the author|` +
		`благодарности|acknowledgements|acknowledgments|приложения|приложение|appendix|appendices|` +
		`примечания|notes|литература|references|библиография|bibliography|указатель|index`
)

var (
	leaderPattern   = regexp.MustCompile(`^(.+?)(?:\.{2,}|(?:\.[ \t]+){2,}|…+|\t+|\s{3,}|_{2,})(.*?)(\d+)$`)
	numberedPattern = regexp.MustCompile(`^(\d+)\s+(\p{Lu}.+)$`)
	loosePattern    = regexp.MustCompile(`^((?:(?i:` + sectionWords + `)(?:[^\p{L}]|$)|§|[IVXLCDM]+\.|\d+(?:\.\d+)*\.?).+?)\s+(\d+)$`)

	structuralStart = regexp.MustCompile(`^\s*(?:(?i:` + sectionWords + `|` + frontBackWords + `)(?:[^\p{L}]|$)|§|[IVXLCDM]+\.|\d+(?:\.\d+)+\.?|\d+\.)`)
	numberedChapter = regexp.MustCompile(`^\s*\d+\.\s+\p{Lu}`)
	runningNumber   = regexp.MustCompile(`^\d+\s+((?:(?i:глава|chapter|часть|part)(?:[^\p{L}]|$)|§|\d+\.).*)$`)
	bareNumber      = regexp.MustCompile(`^\d+$`)
	outlineAhead    = regexp.MustCompile(`^\d+\.\d+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// matchers lists the line strategies in precedence order.
var matchers = []struct {
	kind        MatchKind
	re          *regexp.Regexp
	title, page int
}{
	{LeaderMatch, leaderPattern, 1, 3},
	{NumberedHeading, numberedPattern, 2, 1},
	{LooseMatch, loosePattern, 1, 2},
}

// Classify runs the matchers against a trimmed line and returns the first hit.
func Classify(line string) Match {
	for _, m := range matchers {
		g := m.re.FindStringSubmatch(line)
		if g == nil {
			continue
		}
		return Match{
			Kind:  m.kind,
			Title: strings.TrimSpace(g[m.title]),
			Page:  g[m.page],
		}
	}
	return Match{Kind: NoMatch}
}

// IsStructuralStart reports whether line opens with a chapter/section keyword,
// a front/back matter keyword, a section sign, a Roman numeral or an outline
// number.
func IsStructuralStart(line string) bool {
	return structuralStart.MatchString(line)
}

var level1Words = []string{
	"глава", "chapter", "часть", "part", "раздел", "section",
	"введение", "introduction", "заключение", "conclusion",
	"предисловие", "preface", "foreword", "об авторе", "about the author",
	"благодарности", "acknowledgements", "acknowledgments",
}

// GuessLevel infers the TOC level of a title: chapter-like keywords and the
// "N. Capitalized" form are level 1, everything else level 2.
func GuessLevel(t string) int {
	lower := strings.ToLower(t)
	for _, w := range level1Words {
		if containsWord(lower, w) {
			return 1
		}
	}
	if numberedChapter.MatchString(t) {
		return 1
	}
	return 2
}

// containsWord reports whether w occurs in s bounded by non-letters.
func containsWord(s, w string) bool {
	for off := 0; off < len(s); {
		i := strings.Index(s[off:], w)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(w)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !unicode.IsLetter(before)) && (end == len(s) || !unicode.IsLetter(after)) {
			return true
		}
		off = end
	}
	return false
}

// splitRunTogether breaks a line holding several outline entries, e.g.
// "Packages 3.1 Modules 3.2 Imports", at each whitespace run that follows a
// letter and precedes an "N.N" outline number.
func splitRunTogether(line string) []string {
	var parts []string
	start := 0
	for _, loc := range whitespaceRun.FindAllStringIndex(line, -1) {
		prev, _ := utf8.DecodeLastRuneInString(line[:loc[0]])
		if !unicode.IsLetter(prev) || !outlineAhead.MatchString(line[loc[1]:]) {
			continue
		}
		parts = append(parts, line[start:loc[0]])
		start = loc[1]
	}
	return append(parts, line[start:])
}
