package cleanup

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// TOCItem is one entry of an LLM-extracted table of contents.
type TOCItem struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
	Level int    `json:"level"`
}

type tocResponse struct {
	Items []TOCItem `json:"items"`
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`forget\s+(everything|all)|new\s+instructions)`,
)

// ValidateTOCItem checks an item for validity and normalizes it in place.
// Returns true if valid.
func ValidateTOCItem(it *TOCItem) bool {
	if it == nil {
		return false
	}
	it.Title = strings.Join(strings.Fields(it.Title), " ")
	if n := utf8.RuneCountInString(it.Title); n < 1 || n > 300 {
		return false
	}
	if injectionPattern.MatchString(it.Title) {
		return false
	}
	// Clamp level to chapter/section.
	if it.Level < 1 {
		it.Level = 1
	}
	if it.Level > 2 {
		it.Level = 2
	}
	if it.Page < 0 {
		it.Page = 0
	}
	return true
}

// SequenceItem converts a validated item.
func (it TOCItem) SequenceItem() doctree.SequenceItem {
	return doctree.SequenceItem{Title: it.Title, Level: it.Level, Page: doctree.PageOf(it.Page)}
}
