package cleanup

import "strings"

const cleanupPrompt = `You are a technical editor. Restore clean, coherent text from a noisy PDF extract.

Rules:
1. Keep every sentence and all of the meaning.
2. Remove page numbers and running headers or footers.
3. Join words broken by end-of-line hyphenation.
4. Fix spacing.
%s5. Return only the cleaned text, without comments.

TEXT:
`

const dropHeadingRule = "4a. Remove the section heading from the very first line.\n"

// BuildCleanupPrompt creates the prompt for one fragment. first marks the
// fragment that opens a section.
func BuildCleanupPrompt(text string, first bool) string {
	rule := ""
	if first {
		rule = dropHeadingRule
	}
	return strings.Replace(cleanupPrompt, "%s", rule, 1) + text
}

const tocPrompt = `You are a document structure parser. The input is the text of the first pages of a book.
Extract its table of contents as JSON.

Instructions:
1. Return a JSON object with the key "items".
2. "items" is the list of sections in reading order.
3. Each item is {"title": "Name", "page": page_number, "level": nesting_level}, where level 1 is a chapter and level 2 a section inside it.
4. If there is no table of contents, return {"items": []}.

Text:
---
`

// BuildTOCPrompt creates the TOC extraction prompt for front-matter text.
func BuildTOCPrompt(frontMatter string) string {
	return tocPrompt + frontMatter + "\n---"
}
