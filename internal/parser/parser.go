package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// ErrEmptyDocument is returned when no text could be extracted.
var ErrEmptyDocument = errors.New("parser: no text extracted")

// ErrUnsupportedFormat is returned by ForFile for unknown extensions.
var ErrUnsupportedFormat = errors.New("parser: unsupported file extension")

// Document is the text extracted from one source file.
type Document struct {
	Title string
	// FrontMatter is the leading part of the text where a table of contents
	// is searched for.
	FrontMatter string
	FullText    string
	// Pages is the page count for paged formats, 0 otherwise.
	Pages int
	// Headings holds heading-delimited sections for formats that carry
	// explicit heading markup. Nil for PDF and plain text.
	Headings []doctree.FlatNode
}

// Options controls extraction.
type Options struct {
	// TOCPages is how many leading PDF pages make up the front matter.
	TOCPages int
	// TOCChars is how many leading characters of non-paged text make up the
	// front matter.
	TOCChars int
	// FallbackPdftotext retries PDF extraction with the pdftotext binary.
	FallbackPdftotext bool
	// StripRunningHeaders removes repeated page header and footer lines.
	StripRunningHeaders bool
}

func DefaultOptions() Options {
	return Options{
		TOCPages:            20,
		TOCChars:            50_000,
		StripRunningHeaders: true,
	}
}

// Parser extracts a Document from raw file bytes.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	def := DefaultOptions()
	if opts.TOCPages <= 0 {
		opts.TOCPages = def.TOCPages
	}
	if opts.TOCChars <= 0 {
		opts.TOCChars = def.TOCChars
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{TOCChars: opts.TOCChars}, nil
	case ".md", ".markdown":
		return &MarkdownParser{TOCChars: opts.TOCChars}, nil
	case ".html", ".htm":
		return &HTMLParser{TOCChars: opts.TOCChars}, nil
	case ".pdf":
		return &PDFParser{
			TOCPages:            opts.TOCPages,
			FallbackPdftotext:   opts.FallbackPdftotext,
			StripRunningHeaders: opts.StripRunningHeaders,
		}, nil
	case ".docx":
		return &DOCXParser{TOCChars: opts.TOCChars}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle is the file name without directory and extension.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// prefix returns at most n runes from the start of s.
func prefix(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for off := range s {
		if i == n {
			return s[:off]
		}
		i++
	}
	return s
}

// finish validates a document and fills the front matter from the full text
// when the format has no page-based front matter.
func finish(doc *Document, tocChars int) (*Document, error) {
	if strings.TrimSpace(doc.FullText) == "" && len(doc.Headings) == 0 {
		return nil, ErrEmptyDocument
	}
	if doc.FrontMatter == "" {
		doc.FrontMatter = prefix(doc.FullText, tocChars)
	}
	if !utf8.ValidString(doc.FullText) {
		doc.FullText = strings.ToValidUTF8(doc.FullText, "�")
	}
	return doc, nil
}
