package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs with a heading style delimit
// sections; body paragraphs and tables become their content.
type DOCXParser struct {
	TOCChars int
}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docstruct-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	return collectDOCX(doc.Document.Body.Items).document(baseTitle(filename), p.TOCChars)
}

// collectDOCX walks the body in order. Pages start at 1 and advance on every
// hard page break, counted before the paragraph holding it is placed.
func collectDOCX(items []interface{}) *headingCollector {
	c := newHeadingCollector()
	c.page = 1
	for _, item := range items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text, breaks := docxParagraph(it)
			c.page += breaks
			if text == "" {
				continue
			}
			if level := docxHeadingLevel(it); level > 0 {
				c.heading(text, level)
			} else {
				c.text(text)
			}
		case *docx.Table:
			text, breaks := docxTableText(it)
			c.page += breaks
			c.text(text)
		}
	}
	return c
}

// headingStyles are lower-cased style name prefixes that mark headings, in
// English and Russian Word installations.
var headingStyles = []string{"heading", "заголовок"}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	return styleHeadingLevel(para.Properties.Style.Val)
}

// styleHeadingLevel returns the heading level encoded in a paragraph style
// ("Heading2", "heading 2", "Заголовок 1"), 1 for "Title" and heading styles
// without a number, and 0 for body text.
func styleHeadingLevel(style string) int {
	style = strings.ToLower(strings.TrimSpace(style))
	if style == "title" {
		return 1
	}
	for _, h := range headingStyles {
		if !strings.HasPrefix(style, h) {
			continue
		}
		digits := strings.TrimFunc(strings.TrimPrefix(style, h), func(r rune) bool { return !unicode.IsDigit(r) })
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			return n
		}
		return 1
	}
	return 0
}

// docxParagraph returns the paragraph text and the number of hard page
// breaks in it. Tabs become spaces and line breaks newlines.
func docxParagraph(para *docx.Paragraph) (string, int) {
	var buf strings.Builder
	breaks := 0
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch v := rc.(type) {
			case *docx.Text:
				buf.WriteString(v.Text)
			case *docx.Tab:
				buf.WriteByte(' ')
			case *docx.BarterRabbet:
				if v.Type == "page" {
					breaks++
				}
				buf.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(buf.String()), breaks
}

// docxTableText renders a table as "[TABLE]" followed by one line per row,
// cells joined with " | ". It also returns the page breaks inside the cells.
func docxTableText(tbl *docx.Table) (string, int) {
	var rows []string
	breaks := 0
	for _, row := range tbl.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				t, n := docxParagraph(para)
				breaks += n
				if t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if strings.TrimSpace(strings.Join(cells, "")) != "" {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	if len(rows) == 0 {
		return "", breaks
	}
	return "[TABLE]\n" + strings.Join(rows, "\n"), breaks
}
