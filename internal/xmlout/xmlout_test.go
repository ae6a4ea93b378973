package xmlout

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/dgallion1/docstruct/internal/doctree"
)

type decodedSection struct {
	Title    string           `xml:"title,attr"`
	Page     string           `xml:"page,attr"`
	Content  *string          `xml:"content"`
	Sections []decodedSection `xml:"section"`
}

type decodedBook struct {
	XMLName xml.Name `xml:"Book"`
	Nav     *struct {
		Items []struct {
			Title string `xml:"title,attr"`
			Page  string `xml:"page,attr"`
			Level string `xml:"level,attr"`
		} `xml:"Item"`
	} `xml:"NavigationTable"`
	Sections []decodedSection `xml:"section"`
}

func sampleTree() *doctree.SectionNode {
	return doctree.Assemble([]doctree.FlatNode{
		{Title: "Introduction", Content: "line one\nline two", Level: 1, Page: doctree.PageOf(1)},
		{Title: "Chapter 1. Basics", Content: "   \n", Level: 1, Page: doctree.PageOf(5)},
		{Title: "Overview", Content: "A & B < C", Level: 2},
	})
}

func decode(t *testing.T, out []byte) decodedBook {
	t.Helper()
	var b decodedBook
	if err := xml.Unmarshal(out, &b); err != nil {
		t.Fatalf("output is not valid XML: %v\n%s", err, out)
	}
	return b
}

func TestMarshal_Structure(t *testing.T) {
	seq := []doctree.SequenceItem{
		{Title: "Introduction", Level: 1, Page: doctree.PageOf(1)},
		{Title: "Chapter 1. Basics", Level: 1, Page: doctree.PageOf(5)},
		{Title: "1.1 Overview", Level: 2},
		{Title: "Never located", Level: 2, Page: doctree.PageOf(9)},
	}
	out, err := Marshal(seq, sampleTree())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(out), xml.Header) {
		t.Errorf("expected XML header, got %q", string(out[:40]))
	}

	b := decode(t, out)
	if b.Nav == nil || len(b.Nav.Items) != 4 {
		t.Fatalf("expected 4 navigation items, got %+v", b.Nav)
	}
	if it := b.Nav.Items[2]; it.Page != "" || it.Level != "2" {
		t.Errorf("expected empty page and level 2, got %+v", it)
	}
	if len(b.Sections) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(b.Sections))
	}
	intro, ch1 := b.Sections[0], b.Sections[1]
	if intro.Page != "1" || intro.Content == nil || *intro.Content != "line one\nline two" {
		t.Errorf("unexpected intro section %+v", intro)
	}
	if ch1.Content != nil {
		t.Errorf("expected whitespace-only content to be omitted, got %q", *ch1.Content)
	}
	if len(ch1.Sections) != 1 || ch1.Sections[0].Title != "Overview" {
		t.Fatalf("expected nested Overview, got %+v", ch1.Sections)
	}
	if got := *ch1.Sections[0].Content; got != "A & B < C" {
		t.Errorf("expected escaped content to decode, got %q", got)
	}
	if ch1.Sections[0].Page != "" {
		t.Errorf("expected empty page, got %q", ch1.Sections[0].Page)
	}
}

func TestMarshal_NoSequenceOmitsNavigation(t *testing.T) {
	out, err := Marshal(nil, sampleTree())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(out), "NavigationTable") {
		t.Error("expected no NavigationTable without a sequence")
	}
	if b := decode(t, out); len(b.Sections) != 2 {
		t.Errorf("expected 2 sections, got %d", len(b.Sections))
	}
}

func TestMarshal_StripsControlCharacters(t *testing.T) {
	seq := []doctree.SequenceItem{{Title: "Bad\x01Title", Level: 1}}
	root := &doctree.SectionNode{Children: []*doctree.SectionNode{
		{Title: "Bad\x02Title", Content: "text\x0bhere", Level: 1},
	}}
	out, err := Marshal(seq, root)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b := decode(t, out)
	if b.Nav.Items[0].Title != "BadTitle" || b.Sections[0].Title != "BadTitle" {
		t.Errorf("expected control characters removed, got %q / %q", b.Nav.Items[0].Title, b.Sections[0].Title)
	}
	if *b.Sections[0].Content != "texthere" {
		t.Errorf("expected clean content, got %q", *b.Sections[0].Content)
	}
}

func TestMarshal_EmptyTree(t *testing.T) {
	out, err := Marshal(nil, &doctree.SectionNode{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b := decode(t, out)
	if len(b.Sections) != 0 || b.Nav != nil {
		t.Errorf("expected empty book, got %+v", b)
	}
}
