package parser

import (
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// headingCollector accumulates heading-delimited sections in document order.
// Text seen before the first heading becomes a preamble section named after
// the document.
type headingCollector struct {
	nodes    []doctree.FlatNode
	preamble strings.Builder
	full     strings.Builder
	current  *strings.Builder
	page     int
}

func newHeadingCollector() *headingCollector {
	c := &headingCollector{}
	c.current = &c.preamble
	return c
}

// heading starts a new section.
func (c *headingCollector) heading(title string, level int) {
	c.flush()
	c.nodes = append(c.nodes, doctree.FlatNode{Title: title, Level: level, Page: doctree.PageOf(c.page)})
	c.current = &strings.Builder{}
	c.writeFull(title)
}

// text appends a block to the current section.
func (c *headingCollector) text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if c.current.Len() > 0 {
		c.current.WriteString("\n\n")
	}
	c.current.WriteString(t)
	c.writeFull(t)
}

func (c *headingCollector) writeFull(t string) {
	if c.full.Len() > 0 {
		c.full.WriteString("\n\n")
	}
	c.full.WriteString(t)
}

func (c *headingCollector) flush() {
	if len(c.nodes) == 0 || c.current == &c.preamble {
		return
	}
	c.nodes[len(c.nodes)-1].Content = c.current.String()
}

// document finishes collection. With no headings the result carries only the
// full text so the TOC strategy can run on it.
func (c *headingCollector) document(title string, tocChars int) (*Document, error) {
	c.flush()
	doc := &Document{Title: title, FullText: sanitize(c.full.String()), Pages: c.page}
	if len(c.nodes) > 0 {
		if pre := c.preamble.String(); pre != "" {
			top := c.nodes[0].Level
			for _, n := range c.nodes {
				top = min(top, n.Level)
			}
			c.nodes = append([]doctree.FlatNode{{Title: title, Level: top, Content: pre}}, c.nodes...)
		}
		doc.Headings = c.nodes
	}
	return finish(doc, tocChars)
}
