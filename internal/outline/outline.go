// Package outline renders a conversion result as a styled terminal report.
package outline

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/pipeline"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	missStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// Render writes the summary, the table of contents with its match status,
// the section tree and any warnings.
func Render(w io.Writer, res *pipeline.Result) {
	summary := fmt.Sprintf("%s %s\n%s %s  %s %d  %s %d",
		dimStyle.Render("Title:"), headingStyle.Render(res.Title),
		dimStyle.Render("Strategy:"), string(res.Strategy),
		dimStyle.Render("Sections:"), res.Tree.Count(),
		dimStyle.Render("Pages:"), res.Pages,
	)
	if res.Partial {
		summary += "\n" + warnStyle.Render("partial result")
	}
	fmt.Fprintln(w, boxStyle.Render(summary))

	if len(res.Sequence) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("Table of contents"))
		renderSequence(w, res)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("Sections"))
	renderTree(w, res.Tree, "")

	if len(res.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Warnings (%d)", len(res.Warnings))))
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("!"), warn)
		}
	}
}

// renderSequence lists every TOC item, marking the ones located in the text
// with their offset.
func renderSequence(w io.Writer, res *pipeline.Result) {
	located := make(map[string][]int)
	for _, s := range res.Spans {
		located[s.Item.Title] = append(located[s.Item.Title], s.Start)
	}

	matched := 0
	for _, it := range res.Sequence {
		indent := strings.Repeat("  ", max(it.Level-1, 0))
		line := indent + it.Title + pageSuffix(it.Page)
		if offs := located[it.Title]; len(offs) > 0 {
			located[it.Title] = offs[1:]
			matched++
			fmt.Fprintf(w, "  %s %s %s\n", okStyle.Render("✓"), line, dimStyle.Render(fmt.Sprintf("@%d", offs[0])))
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", missStyle.Render("✗"), line)
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  %d of %d entries located", matched, len(res.Sequence))))
}

func renderTree(w io.Writer, n *doctree.SectionNode, prefix string) {
	for i, c := range n.Children {
		last := i == len(n.Children)-1
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}
		size := dimStyle.Render(fmt.Sprintf("(%d chars)", utf8.RuneCountInString(c.Content)))
		fmt.Fprintf(w, "%s%s%s%s %s\n", prefix, branch, c.Title, pageSuffix(c.Page), size)
		renderTree(w, c, prefix+next)
	}
}

func pageSuffix(p *int) string {
	if p == nil {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf(" p. %d", *p))
}
