package doctree

// SequenceItem is one titled entry of a linearized table of contents, in
// reading order.
type SequenceItem struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Page  *int   `json:"page,omitempty"`
}

// FlatNode is a leveled section record before nesting. Records come from
// located TOC spans or from heading-based extractors (DOCX, Markdown, HTML).
type FlatNode struct {
	Title   string
	Content string
	Level   int
	Page    *int
}

// SectionNode is a nested section. The root returned by Assemble is synthetic
// (level 0, no title) and only carries Children.
type SectionNode struct {
	Title    string
	Content  string
	Level    int
	Page     *int
	Children []*SectionNode
}

// PageOf returns a pointer to p, or nil when p is not a positive page number.
func PageOf(p int) *int {
	if p <= 0 {
		return nil
	}
	return &p
}

// Walk visits every node below root in pre-order, passing the node's parent.
func (n *SectionNode) Walk(fn func(node, parent *SectionNode)) {
	for _, c := range n.Children {
		fn(c, n)
		c.Walk(fn)
	}
}

// Count returns the number of sections below n.
func (n *SectionNode) Count() int {
	total := 0
	n.Walk(func(_, _ *SectionNode) { total++ })
	return total
}
