package parser

import "strings"

// sanitize removes NUL bytes and turns form feeds into spaces.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ReplaceAll(s, "\f", " ")
}

const (
	runningMinLines  = 60
	runningMinLen    = 20
	runningMaxRepeat = 4
)

// StripRunningHeaders drops page header and footer lines: trimmed lines
// longer than 20 characters that occur more than 4 times. Texts shorter than
// 60 lines are returned unchanged.
func StripRunningHeaders(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < runningMinLines {
		return text
	}
	counts := make(map[string]int)
	for _, l := range lines {
		if s := strings.TrimSpace(l); len([]rune(s)) > runningMinLen {
			counts[s]++
		}
	}
	kept := lines[:0]
	for _, l := range lines {
		if counts[strings.TrimSpace(l)] > runningMaxRepeat {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
