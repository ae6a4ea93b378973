// Package xmlout serializes a recovered section tree as a navigable XML book:
//
//	<Book>
//	  <NavigationTable>
//	    <Item title="" page="" level=""/>
//	  </NavigationTable>
//	  <section title="" page="">
//	    <content>...</content>
//	    <section .../>
//	  </section>
//	</Book>
package xmlout

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// Write encodes the book to w. The navigation table is written only when seq
// is non-empty and lists every item whether or not it was located in the text.
func Write(w io.Writer, seq []doctree.SequenceItem, root *doctree.SectionNode) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	book := xml.StartElement{Name: xml.Name{Local: "Book"}}
	if err := enc.EncodeToken(book); err != nil {
		return fmt.Errorf("encode book: %w", err)
	}

	if len(seq) > 0 {
		nav := xml.StartElement{Name: xml.Name{Local: "NavigationTable"}}
		if err := enc.EncodeToken(nav); err != nil {
			return fmt.Errorf("encode navigation table: %w", err)
		}
		for _, it := range seq {
			item := xml.StartElement{
				Name: xml.Name{Local: "Item"},
				Attr: []xml.Attr{
					attr("title", doctree.StripControl(it.Title)),
					attr("page", pageAttr(it.Page)),
					attr("level", strconv.Itoa(it.Level)),
				},
			}
			if err := enc.EncodeToken(item); err != nil {
				return fmt.Errorf("encode item: %w", err)
			}
			if err := enc.EncodeToken(item.End()); err != nil {
				return fmt.Errorf("encode item: %w", err)
			}
		}
		if err := enc.EncodeToken(nav.End()); err != nil {
			return fmt.Errorf("encode navigation table: %w", err)
		}
	}

	if root != nil {
		for _, c := range root.Children {
			if err := writeSection(enc, c); err != nil {
				return err
			}
		}
	}

	if err := enc.EncodeToken(book.End()); err != nil {
		return fmt.Errorf("encode book: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Marshal returns the encoded book.
func Marshal(seq []doctree.SequenceItem, root *doctree.SectionNode) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, seq, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSection(enc *xml.Encoder, n *doctree.SectionNode) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "section"},
		Attr: []xml.Attr{
			attr("title", doctree.StripControl(n.Title)),
			attr("page", pageAttr(n.Page)),
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("encode section %q: %w", n.Title, err)
	}

	// Character data tokens keep newlines unescaped, unlike struct fields.
	if content := doctree.StripControl(n.Content); strings.TrimSpace(content) != "" {
		c := xml.StartElement{Name: xml.Name{Local: "content"}}
		if err := enc.EncodeToken(c); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(content)); err != nil {
			return err
		}
		if err := enc.EncodeToken(c.End()); err != nil {
			return err
		}
	}

	for _, child := range n.Children {
		if err := writeSection(enc, child); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// pageAttr renders a page number, empty when absent or zero.
func pageAttr(p *int) string {
	if p == nil || *p == 0 {
		return ""
	}
	return strconv.Itoa(*p)
}
