// Package toc finds a table of contents in the front matter of extracted
// text, builds it into a two-level tree and linearizes that tree into the
// ordered sequence the boundary locator consumes.
package toc

import (
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/title"
)

// Entry is a node of the TOC tree. The root returned by Parse has level 0 and
// no title; real entries are level 1 (chapters) or 2 (sections).
type Entry struct {
	Title    string
	Level    int
	Page     *int
	Children []*Entry
}

// Empty reports whether no TOC entry was found.
func (e *Entry) Empty() bool {
	return len(e.Children) == 0
}

// Options tunes the scan heuristics.
type Options struct {
	// MissLimit ends the scan after this many consecutive unrecognized lines.
	MissLimit int
	// MinBodyHeadingLen is the minimum normalized length of a line before it
	// can be taken as a body heading repeating an already seen entry.
	MinBodyHeadingLen int
	// MaxTitleLen bounds a (possibly multi-line) title in characters.
	MaxTitleLen int
	// MaxHeaderLen bounds a "Contents" header line in characters.
	MaxHeaderLen int
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		MissLimit:         50,
		MinBodyHeadingLen: 10,
		MaxTitleLen:       300,
		MaxHeaderLen:      50,
	}
}

// StopReason tells why a scan ended.
type StopReason string

const (
	StopEndOfInput StopReason = "end_of_input"
	StopBodyStart  StopReason = "body_start"
	StopMissLimit  StopReason = "miss_limit"
)

// Result is the outcome of one scan.
type Result struct {
	Root    *Entry
	Entries int
	Stop    StopReason
	Misses  int
}

// Parser is a heuristic TOC parser. It is stateless between calls and safe
// for concurrent use; all scan state lives in a per-call context.
type Parser struct {
	opts Options
	log  *slog.Logger
}

func NewParser(opts Options, log *slog.Logger) *Parser {
	def := DefaultOptions()
	if opts.MissLimit <= 0 {
		opts.MissLimit = def.MissLimit
	}
	if opts.MinBodyHeadingLen <= 0 {
		opts.MinBodyHeadingLen = def.MinBodyHeadingLen
	}
	if opts.MaxTitleLen <= 0 {
		opts.MaxTitleLen = def.MaxTitleLen
	}
	if opts.MaxHeaderLen <= 0 {
		opts.MaxHeaderLen = def.MaxHeaderLen
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{opts: opts, log: log}
}

var (
	headerMarkers   = []string{"contents", "оглавление", "содержание"}
	abridgedMarkers = []string{"краткое", "briefcontents", "contentsataglance"}

	tailSeparators = regexp.MustCompile(`[._\s…]+$`)
	gluedNumber    = regexp.MustCompile(`^(\d+\.)(\p{Lu})`)
)

// scan is the mutable state of one Parse call.
type scan struct {
	opts Options
	root *Entry

	started bool
	chapter *Entry
	pending string
	misses  int
	seen    []string
	entries int
	stop    StopReason
}

// Parse scans front-matter text and returns the TOC tree. An empty tree means
// no TOC was recognized; callers fall back to another strategy.
func (p *Parser) Parse(text string) *Entry {
	return p.Scan(text).Root
}

// Scan is Parse with scan diagnostics.
func (p *Parser) Scan(text string) Result {
	s := &scan{opts: p.opts, root: &Entry{Level: 0}}

	for _, line := range prepareLines(text) {
		if s.step(line) {
			break
		}
	}
	if s.stop == "" {
		s.stop = StopEndOfInput
	}
	s.flushPending("")

	p.log.Debug("toc scan finished",
		"entries", s.entries,
		"stop", string(s.stop),
		"misses", s.misses,
	)
	return Result{Root: s.root, Entries: s.entries, Stop: s.stop, Misses: s.misses}
}

// prepareLines trims lines, drops blank ones and removes a running page
// number printed in front of a structural keyword ("12 Chapter 3" -> "Chapter 3").
func prepareLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if m := runningNumber.FindStringSubmatch(l); m != nil {
			l = m[1]
		}
		lines = append(lines, l)
	}
	return lines
}

// step processes one line and reports whether the scan is over.
func (s *scan) step(line string) bool {
	norm := title.Normalize(line)

	if !s.started {
		if containsAny(norm, abridgedMarkers) {
			return false
		}
		if s.isHeader(line, norm) {
			s.started = true
			return false
		}
		// Only a page-bearing entry opens a TOC without a header; a prose line
		// that merely starts with "Part" or "1." does not.
		if !Classify(line).HasPage() {
			return false
		}
		s.started = true
	}

	m := Classify(line)

	if !m.HasPage() && s.bodyStarted(norm) {
		s.stop = StopBodyStart
		return true
	}
	if s.isHeader(line, norm) {
		return false
	}
	if utf8.RuneCountInString(line) > s.opts.MaxTitleLen {
		s.pending = ""
		return s.miss()
	}

	if m.HasPage() {
		if s.pending != "" {
			if !IsStructuralStart(m.Title) {
				s.emit(s.pending+" "+m.Title, m.Page)
				s.pending = ""
				s.misses = 0
				return false
			}
			s.flushPending("")
		}
		s.emit(m.Title, m.Page)
		s.misses = 0
		return false
	}

	if IsStructuralStart(line) {
		s.flushPending("")
		parts := splitRunTogether(line)
		for _, part := range parts[:len(parts)-1] {
			s.emit(part, "")
		}
		s.pending = parts[len(parts)-1]
		s.misses = 0
		return false
	}

	if s.pending == "" {
		return s.miss()
	}
	switch {
	case bareNumber.MatchString(line):
		s.flushPending(line)
	case utf8.RuneCountInString(s.pending)+1+utf8.RuneCountInString(line) < s.opts.MaxTitleLen:
		s.pending += " " + line
	default:
		s.pending = ""
		return s.miss()
	}
	s.misses = 0
	return false
}

func (s *scan) miss() bool {
	s.misses++
	if s.misses > s.opts.MissLimit {
		s.stop = StopMissLimit
		return true
	}
	return false
}

func (s *scan) isHeader(line, norm string) bool {
	return utf8.RuneCountInString(line) < s.opts.MaxHeaderLen && containsAny(norm, headerMarkers)
}

// bodyStarted reports whether a line repeats an entry already emitted, which
// means the scan has walked past the TOC into the body. The line may be a
// truncated copy of the entry or a longer heading that begins with it.
func (s *scan) bodyStarted(norm string) bool {
	minLen := s.opts.MinBodyHeadingLen
	if utf8.RuneCountInString(norm) < minLen {
		return false
	}
	for _, t := range s.seen {
		if strings.HasPrefix(t, norm) {
			return true
		}
		if utf8.RuneCountInString(t) >= minLen && strings.HasPrefix(norm, t) {
			return true
		}
	}
	return false
}

func (s *scan) flushPending(page string) {
	if s.pending == "" {
		return
	}
	s.emit(s.pending, page)
	s.pending = ""
}

// emit stores a finished entry. Its level is inferred from the tidied title.
func (s *scan) emit(raw, page string) {
	t := tidyTitle(raw)
	if t == "" {
		return
	}
	level := GuessLevel(t)
	e := &Entry{Title: t, Level: level, Page: parsePage(page)}
	if level == 2 && s.chapter != nil {
		s.chapter.Children = append(s.chapter.Children, e)
	} else {
		s.root.Children = append(s.root.Children, e)
	}
	if level == 1 {
		s.chapter = e
	}
	if n := title.Normalize(t); n != "" {
		s.seen = append(s.seen, n)
	}
	s.entries++
}

// tidyTitle separates a glued outline number ("3.Title" -> "3. Title") and
// drops trailing leader residue.
func tidyTitle(t string) string {
	t = gluedNumber.ReplaceAllString(strings.TrimSpace(t), "$1 $2")
	t = tailSeparators.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

func parsePage(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
