package parser

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// TextParser handles plain text files. Input is read as UTF-8 and decoded as
// Windows-1251 when it is not valid UTF-8.
type TextParser struct {
	TOCChars int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Title:    baseTitle(filename),
		FullText: sanitize(text),
	}
	return finish(doc, p.TOCChars)
}

func decodeText(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode windows-1251: %w", err)
	}
	return string(out), nil
}
