package toc

import "github.com/dgallion1/docstruct/internal/doctree"

// Linearize flattens the tree in pre-order (each entry before its children,
// children before the entry's next sibling), skipping the root, and
// back-fills missing pages.
func Linearize(root *Entry) []doctree.SequenceItem {
	var seq []doctree.SequenceItem
	var walk func(e *Entry)
	walk = func(e *Entry) {
		for _, c := range e.Children {
			item := doctree.SequenceItem{Title: c.Title, Level: c.Level}
			if c.Page != nil {
				item.Page = doctree.PageOf(*c.Page)
			}
			seq = append(seq, item)
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	BackfillPages(seq)
	return seq
}

// BackfillPages gives every item without a page the page of the next item.
// Runs of missing pages all take the first resolved page to their right;
// items with nothing resolved after them stay without a page.
func BackfillPages(seq []doctree.SequenceItem) {
	for i := len(seq) - 2; i >= 0; i-- {
		if seq[i].Page == nil && seq[i+1].Page != nil {
			seq[i].Page = doctree.PageOf(*seq[i+1].Page)
		}
	}
}
