package doctree

import (
	"regexp"
	"strings"
)

// xmlIllegal matches control characters that cannot appear in XML 1.0 text.
var xmlIllegal = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)

// StripControl removes control characters that are illegal in XML text.
func StripControl(s string) string {
	return xmlIllegal.ReplaceAllString(s, "")
}

// Assemble nests an ordered flat list of leveled nodes under a synthetic
// level-0 root. A node becomes a child of the nearest preceding node with a
// strictly lower level. Nodes without a title are skipped and levels below 1
// are treated as 1.
func Assemble(nodes []FlatNode) *SectionNode {
	root := &SectionNode{Level: 0}
	stack := []*SectionNode{root}

	for _, n := range nodes {
		t := strings.TrimSpace(StripControl(n.Title))
		if t == "" {
			continue
		}
		level := n.Level
		if level < 1 {
			level = 1
		}
		node := &SectionNode{
			Title:   t,
			Content: StripControl(n.Content),
			Level:   level,
			Page:    n.Page,
		}

		// Pop until the top can parent this level. The root (level 0) is never popped.
		for len(stack) > 1 && stack[len(stack)-1].Level >= level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, node)
		stack = append(stack, node)
	}

	return root
}
