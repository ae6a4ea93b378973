// Package chunker splits section text into bounded fragments for LLM cleanup.
// Fragments never overlap: cleaned fragments are joined back in order.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls fragment sizes.
type Config struct {
	MaxChars int // Upper bound of a fragment in characters.
	MinChars int // Fragments shorter than this are not worth cleaning.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars: 6000,
		MinChars: 10,
	}
}

// Fragment is one piece of a section's text.
type Fragment struct {
	Text  string
	Index int
	// First is set on the fragment that opens the section.
	First bool
}

// Split breaks text into fragments of at most cfg.MaxChars characters,
// preferring paragraph boundaries, then sentence boundaries, and cutting
// inside a sentence only when a single sentence is too long.
func Split(text string, cfg Config) []Fragment {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	if runeLen(text) <= cfg.MaxChars {
		parts = []string{text}
	} else {
		parts = splitText(text, cfg.MaxChars)
	}

	frags := make([]Fragment, len(parts))
	for i, p := range parts {
		frags[i] = Fragment{Text: p, Index: i, First: i == 0}
	}
	return frags
}

// splitText packs paragraphs into fragments of at most maxChars.
func splitText(text string, maxChars int) []string {
	var result []string
	var current strings.Builder
	currentChars := 0

	flush := func() {
		if currentChars > 0 {
			result = append(result, current.String())
			current.Reset()
			currentChars = 0
		}
	}

	for _, para := range splitByParagraphs(text) {
		paraChars := runeLen(para)

		// If a single paragraph exceeds the target, split it further.
		if paraChars > maxChars {
			flush()
			result = append(result, splitBySentences(para, maxChars)...)
			continue
		}

		if currentChars+2+paraChars > maxChars && currentChars > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
			currentChars += 2
		}
		current.WriteString(para)
		currentChars += paraChars
	}
	flush()

	return result
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences breaks a large paragraph into sentence-based fragments.
func splitBySentences(text string, maxChars int) []string {
	var result []string
	var current strings.Builder
	currentChars := 0

	for _, sent := range splitSentences(text) {
		sentChars := runeLen(sent)
		if sentChars > maxChars {
			if currentChars > 0 {
				result = append(result, current.String())
				current.Reset()
				currentChars = 0
			}
			result = append(result, hardSplit(sent, maxChars)...)
			continue
		}

		if currentChars+1+sentChars > maxChars && currentChars > 0 {
			result = append(result, current.String())
			current.Reset()
			currentChars = 0
		}

		if current.Len() > 0 {
			current.WriteString(" ")
			currentChars++
		}
		current.WriteString(sent)
		currentChars += sentChars
	}

	if currentChars > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?' || r == '…') && i+utf8.RuneLen(r) < len(text) && isSpace(text[i+utf8.RuneLen(r)]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}

// hardSplit cuts s into pieces of at most maxChars runes, backing up to the
// last space when one is available.
func hardSplit(s string, maxChars int) []string {
	var out []string
	for runeLen(s) > maxChars {
		cut := byteOffset(s, maxChars)
		if sp := strings.LastIndexByte(s[:cut], ' '); sp > 0 {
			cut = sp
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// byteOffset returns the byte offset of the n-th rune of s.
func byteOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
