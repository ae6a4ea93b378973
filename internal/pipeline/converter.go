package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/cleanup"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/locate"
	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/title"
	"github.com/dgallion1/docstruct/internal/toc"
	"github.com/dgallion1/docstruct/internal/xmlout"
)

// Mode selects how section content is cleaned.
type Mode string

const (
	ModeFast   Mode = "fast"
	ModeNeural Mode = "neural"
)

// ParseMode validates a mode string. Empty selects def.
func ParseMode(s string, def Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case ModeFast:
		return ModeFast, nil
	case ModeNeural:
		return ModeNeural, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeFast, ModeNeural)
}

// Strategy names how the structure of a document was recovered.
type Strategy string

const (
	StrategyHeadings Strategy = "headings"
	StrategyTOC      Strategy = "toc"
	StrategyLLM      Strategy = "llm"
	StrategyFlat     Strategy = "flat"
)

// LLM is the subset of the LLM client the converter uses. A nil LLM disables
// neural cleanup and the LLM TOC fallback.
type LLM interface {
	ExtractTOC(ctx context.Context, frontMatter string) ([]doctree.SequenceItem, error)
	CleanFragment(ctx context.Context, frag chunker.Fragment) (string, error)
}

// ProgressFunc receives progress updates in percent.
type ProgressFunc func(percent int, message string)

// ConverterOptions bundles the tunables of every stage.
type ConverterOptions struct {
	Parser parser.Options
	TOC    toc.Options
	Locate locate.Options
	Chunk  chunker.Config
}

func DefaultConverterOptions() ConverterOptions {
	return ConverterOptions{
		Parser: parser.DefaultOptions(),
		TOC:    toc.DefaultOptions(),
		Locate: locate.DefaultOptions(),
		Chunk:  chunker.DefaultConfig(),
	}
}

// Request is one document to convert.
type Request struct {
	Filename string
	Data     []byte
	// Title overrides the extracted document title when set.
	Title string
	Mode  Mode
}

// Result is a converted document.
type Result struct {
	Title    string
	Strategy Strategy
	// Sequence is the linearized TOC, nil for heading-based documents.
	Sequence []doctree.SequenceItem
	// Spans are the located sequence items, in text order.
	Spans    []locate.Span
	Tree     *doctree.SectionNode
	Warnings []string
	Pages    int
	// Partial is set when the run was cancelled before every span was
	// processed; Tree holds the completed spans.
	Partial bool
}

// XML serializes the result.
func (r *Result) XML() ([]byte, error) {
	return xmlout.Marshal(r.Sequence, r.Tree)
}

// Converter wires extraction, structure recovery and cleanup together.
type Converter struct {
	llm     LLM
	opts    ConverterOptions
	toc     *toc.Parser
	log     *slog.Logger
	backoff func(int) time.Duration
	group   singleflight.Group
}

func NewConverter(llm LLM, opts ConverterOptions, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Converter{
		llm:     llm,
		opts:    opts,
		toc:     toc.NewParser(opts.TOC, log),
		log:     log,
		backoff: Backoff,
	}
}

// LLMEnabled reports whether an LLM client is configured.
func (c *Converter) LLMEnabled() bool { return c.llm != nil }

// Convert runs the whole conversion. progress may be nil.
//
// When ctx is cancelled during span processing, Convert returns the partial
// result together with ctx.Err().
func (c *Converter) Convert(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	if req.Mode == ModeNeural && c.llm == nil {
		return nil, fmt.Errorf("neural mode requires an LLM endpoint")
	}
	log := c.log.With("filename", req.Filename, "mode", string(req.Mode))

	p, err := parser.ForFile(req.Filename, c.opts.Parser)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(req.Data), req.Filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.Filename, err)
	}
	if req.Title != "" {
		doc.Title = req.Title
	}

	res := &Result{Title: doc.Title, Pages: doc.Pages}

	if len(doc.Headings) > 0 {
		res.Strategy = StrategyHeadings
		log.Info("using document headings", "headings", len(doc.Headings))
		nodes, err := c.cleanNodes(ctx, doc.Headings, req.Mode, res, progress)
		res.Tree = doctree.Assemble(nodes)
		return res, err
	}

	progress(5, "searching table of contents")
	seq, strategy := c.sequence(ctx, doc, res, log)
	res.Sequence = seq

	var flat []doctree.FlatNode
	if len(seq) > 0 {
		loc, err := locate.Locate(seq, doc.FullText, c.opts.Locate)
		if err != nil {
			return nil, fmt.Errorf("locate sections: %w", err)
		}
		for _, w := range loc.Warnings {
			log.Warn("section not located", "warning", w)
		}
		res.Warnings = append(res.Warnings, loc.Warnings...)
		log.Info("located sections", "items", len(seq), "spans", len(loc.Spans), "boundary", loc.Boundary)

		if len(loc.Spans) > 0 {
			res.Strategy = strategy
			res.Spans = loc.Spans
			flat = make([]doctree.FlatNode, len(loc.Spans))
			for i, s := range loc.Spans {
				flat[i] = doctree.FlatNode{
					Title:   sectionTitle(s.Item),
					Content: strings.TrimSpace(s.Content(doc.FullText)),
					Level:   s.Item.Level,
					Page:    s.Item.Page,
				}
			}
		} else {
			res.Warnings = append(res.Warnings, "no table of contents entry was found in the text")
		}
	}

	if flat == nil {
		res.Strategy = StrategyFlat
		res.Warnings = append(res.Warnings, "no usable table of contents; emitting a single section")
		log.Warn("falling back to a single section")
		flat = []doctree.FlatNode{{Title: doc.Title, Content: strings.TrimSpace(doc.FullText), Level: 1}}
	}

	nodes, err := c.cleanNodes(ctx, flat, req.Mode, res, progress)
	res.Tree = doctree.Assemble(nodes)
	return res, err
}

// sequence runs the heuristic TOC parser and, when it finds nothing, asks
// the LLM. An empty sequence means no TOC is available.
func (c *Converter) sequence(ctx context.Context, doc *parser.Document, res *Result, log *slog.Logger) ([]doctree.SequenceItem, Strategy) {
	scan := c.toc.Scan(doc.FrontMatter)
	if !scan.Root.Empty() {
		log.Info("table of contents parsed", "entries", scan.Entries, "stop", string(scan.Stop))
		return toc.Linearize(scan.Root), StrategyTOC
	}
	if c.llm == nil {
		return nil, ""
	}

	seq, err := withRetry(ctx, log, c.backoff, "extract_toc", func() ([]doctree.SequenceItem, error) {
		return c.llm.ExtractTOC(ctx, doc.FrontMatter)
	})
	if err != nil {
		log.Warn("llm toc extraction failed", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("llm toc extraction failed: %s", err))
		return nil, ""
	}
	toc.BackfillPages(seq)
	log.Info("table of contents from llm", "entries", len(seq))
	return seq, StrategyLLM
}

// sectionTitle is the title written for a located item. Second-level titles
// lose their outline number since nesting already carries it.
func sectionTitle(item doctree.SequenceItem) string {
	t := strings.TrimSpace(item.Title)
	if item.Level >= 2 {
		if c := title.Clean(t); c != "" {
			return c
		}
	}
	return t
}

// cleanNodes cleans the content of each node in order. It stops between
// nodes when ctx is done and returns the completed nodes with ctx.Err().
func (c *Converter) cleanNodes(ctx context.Context, nodes []doctree.FlatNode, mode Mode, res *Result, progress ProgressFunc) ([]doctree.FlatNode, error) {
	out := make([]doctree.FlatNode, 0, len(nodes))
	total := len(nodes)
	for i, n := range nodes {
		if err := ctx.Err(); err != nil {
			res.Partial = true
			c.log.Info("conversion cancelled", "completed", i, "total", total)
			return out, err
		}
		progress(10+i*85/total, "cleaning: "+shorten(n.Title, 30))
		n.Content = c.cleanContent(ctx, n.Content, n.Title, mode, res)
		out = append(out, n)
	}
	return out, nil
}

// cleanContent applies the mode's cleanup. Neural failures fall back to the
// fast cleaner with a warning.
func (c *Converter) cleanContent(ctx context.Context, content, sectionTitle string, mode Mode, res *Result) string {
	if mode != ModeNeural || c.llm == nil || utf8.RuneCountInString(content) <= c.opts.Chunk.MinChars {
		return cleanup.Fast(content, sectionTitle)
	}
	cleaned, err := c.cleanNeural(ctx, content)
	if err != nil {
		c.log.Warn("neural cleanup failed, using fast cleanup", "section", sectionTitle, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("section %q: neural cleanup failed: %s", sectionTitle, err))
		return cleanup.Fast(content, sectionTitle)
	}
	return cleaned
}

func (c *Converter) cleanNeural(ctx context.Context, content string) (string, error) {
	frags := chunker.Split(content, c.opts.Chunk)
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		out, err := withRetry(ctx, c.log, c.backoff, "clean_fragment", func() (string, error) {
			return c.llm.CleanFragment(ctx, f)
		})
		if err != nil {
			return "", fmt.Errorf("fragment %d: %w", f.Index, err)
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n\n"), nil
}

// ConvertShared is Convert for synchronous callers: concurrent requests for
// the same file content, name and mode share one conversion. The shared run
// is detached from the caller that started it; each caller stops waiting
// when its own ctx is done.
func (c *Converter) ConvertShared(ctx context.Context, req Request) (*Result, error) {
	key := strings.Join([]string{ContentHashHex(req.Data), string(req.Mode), req.Title, filepath.Base(req.Filename)}, ":")
	ch := c.group.DoChan(key, func() (any, error) {
		return c.Convert(context.WithoutCancel(ctx), req, nil)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Shared {
			c.log.Debug("conversion shared", "filename", req.Filename)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// OptionsFromConfig maps service configuration onto converter options.
func OptionsFromConfig(cfg config.Config) ConverterOptions {
	opts := DefaultConverterOptions()
	opts.Parser.TOCPages = cfg.TOCPages
	opts.Parser.TOCChars = cfg.TOCChars
	opts.Parser.FallbackPdftotext = cfg.PDFFallbackPdftotext
	opts.Parser.StripRunningHeaders = cfg.StripRunningHeaders
	opts.TOC.MissLimit = cfg.TOCMissLimit
	opts.TOC.MinBodyHeadingLen = cfg.TOCMinBodyHeading
	opts.Locate.BoundaryFallback = cfg.BoundaryFallback
	opts.Chunk.MaxChars = cfg.CleanupFragmentChars
	return opts
}
