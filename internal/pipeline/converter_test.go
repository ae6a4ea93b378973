package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/cleanup"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/doctree"
)

const bookText = "CONTENTS\n" +
	"Introduction .......... 1\n" +
	"Chapter 1. Basics .......... 5\n" +
	"1.1 Overview .......... 6\n" +
	"Introduction\n" +
	"This book covers the basics.\n" +
	"\n" +
	"Chapter 1. Basics\n" +
	"Basics are fundamental.\n" +
	"\n" +
	"1.1 Overview\n" +
	"An overview of things.\n"

// fakeLLM scripts LLM responses. cleanErrs are returned, in order, before
// cleanup calls start succeeding.
type fakeLLM struct {
	mu         sync.Mutex
	toc        []doctree.SequenceItem
	tocErr     error
	cleanErrs  []error
	cleanCalls int
	tocCalls   int
}

func (f *fakeLLM) ExtractTOC(_ context.Context, _ string) ([]doctree.SequenceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tocCalls++
	return f.toc, f.tocErr
}

func (f *fakeLLM) CleanFragment(_ context.Context, frag chunker.Fragment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanCalls++
	if len(f.cleanErrs) > 0 {
		err := f.cleanErrs[0]
		f.cleanErrs = f.cleanErrs[1:]
		return "", err
	}
	return "CLEAN: " + frag.Text, nil
}

func newTestConverter(llm LLM) *Converter {
	c := NewConverter(llm, DefaultConverterOptions(), nil)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

// newNoLLMConverter avoids the typed-nil interface trap of passing a nil *fakeLLM.
func newNoLLMConverter() *Converter {
	return newTestConverter(nil)
}

func sectionTitles(nodes []*doctree.SectionNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Title
	}
	return out
}

func TestConvert_TOCStrategy(t *testing.T) {
	c := newNoLLMConverter()
	var percents []int
	res, err := c.Convert(context.Background(), Request{Filename: "book.txt", Data: []byte(bookText), Mode: ModeFast},
		func(p int, _ string) { percents = append(percents, p) })
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if res.Strategy != StrategyTOC {
		t.Errorf("expected strategy %q, got %q", StrategyTOC, res.Strategy)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %q", res.Warnings)
	}
	if len(res.Sequence) != 3 {
		t.Fatalf("expected 3 sequence items, got %d", len(res.Sequence))
	}

	top := res.Tree.Children
	if got := sectionTitles(top); len(got) != 2 || got[0] != "Introduction" || got[1] != "Chapter 1. Basics" {
		t.Fatalf("unexpected top-level sections %q", got)
	}
	if top[0].Level != 1 || top[1].Level != 1 {
		t.Errorf("expected level-1 top sections, got %d and %d", top[0].Level, top[1].Level)
	}
	if len(top[1].Children) != 1 {
		t.Fatalf("expected one child under the chapter, got %d", len(top[1].Children))
	}
	ov := top[1].Children[0]
	if ov.Title != "Overview" || ov.Level != 2 {
		t.Errorf("expected level-2 Overview, got %q/L%d", ov.Title, ov.Level)
	}
	if ov.Page == nil || *ov.Page != 6 {
		t.Errorf("expected page 6, got %v", ov.Page)
	}
	if top[0].Content != "This book covers the basics." {
		t.Errorf("unexpected intro content %q", top[0].Content)
	}
	if ov.Content != "An overview of things." {
		t.Errorf("unexpected overview content %q", ov.Content)
	}

	want := []int{5, 10, 38, 66}
	if len(percents) != len(want) {
		t.Fatalf("expected progress %v, got %v", want, percents)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Errorf("expected progress %v, got %v", want, percents)
			break
		}
	}

	out, err := res.XML()
	if err != nil {
		t.Fatalf("XML: %v", err)
	}
	for _, s := range []string{"<NavigationTable>", `title="1.1 Overview"`, `<section title="Overview" page="6">`} {
		if !strings.Contains(string(out), s) {
			t.Errorf("expected XML to contain %q\n%s", s, out)
		}
	}
}

func TestConvert_HeadingsStrategy(t *testing.T) {
	md := "# Guide\n\nintro text\n\n## Setup\n\nsteps here\n"
	res, err := newNoLLMConverter().Convert(context.Background(), Request{Filename: "guide.md", Data: []byte(md)}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Strategy != StrategyHeadings {
		t.Errorf("expected strategy %q, got %q", StrategyHeadings, res.Strategy)
	}
	if res.Sequence != nil {
		t.Errorf("expected no sequence for heading documents, got %d items", len(res.Sequence))
	}
	if len(res.Tree.Children) != 1 || res.Tree.Children[0].Title != "Guide" {
		t.Fatalf("unexpected tree %q", sectionTitles(res.Tree.Children))
	}
	kids := res.Tree.Children[0].Children
	if len(kids) != 1 || kids[0].Title != "Setup" || kids[0].Content != "steps here" {
		t.Errorf("unexpected child sections %+v", kids)
	}
}

func TestConvert_FlatFallback(t *testing.T) {
	text := "It was a bright cold day in April.\nThe clocks were striking thirteen.\n"
	res, err := newNoLLMConverter().Convert(context.Background(), Request{Filename: "notes.txt", Data: []byte(text)}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Strategy != StrategyFlat {
		t.Errorf("expected strategy %q, got %q", StrategyFlat, res.Strategy)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a fallback warning")
	}
	if len(res.Tree.Children) != 1 || res.Tree.Children[0].Title != "notes" {
		t.Fatalf("expected a single section titled after the file, got %q", sectionTitles(res.Tree.Children))
	}
	if !strings.HasPrefix(res.Tree.Children[0].Content, "It was a bright cold day") {
		t.Errorf("expected the whole text as content, got %q", res.Tree.Children[0].Content)
	}
}

func TestConvert_TitleOverride(t *testing.T) {
	text := "Just a paragraph of prose.\n"
	res, err := newNoLLMConverter().Convert(context.Background(), Request{Filename: "x.txt", Data: []byte(text), Title: "My Book"}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Title != "My Book" || res.Tree.Children[0].Title != "My Book" {
		t.Errorf("expected title override, got %q / %q", res.Title, res.Tree.Children[0].Title)
	}
}

func llmText() string {
	return strings.Repeat("Plain prose without any structure here. ", 20) + "\n" +
		"Alpha section\nalpha body text\n" +
		"Beta section\nbeta body text\n"
}

func TestConvert_LLMTOCFallback(t *testing.T) {
	llm := &fakeLLM{toc: []doctree.SequenceItem{
		{Title: "Alpha section", Level: 1, Page: doctree.PageOf(2)},
		{Title: "Beta section", Level: 1},
	}}
	res, err := newTestConverter(llm).Convert(context.Background(), Request{Filename: "raw.txt", Data: []byte(llmText()), Mode: ModeFast}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Strategy != StrategyLLM {
		t.Fatalf("expected strategy %q, got %q (warnings %q)", StrategyLLM, res.Strategy, res.Warnings)
	}
	if llm.tocCalls != 1 {
		t.Errorf("expected one toc call, got %d", llm.tocCalls)
	}
	if llm.cleanCalls != 0 {
		t.Errorf("expected fast mode to skip llm cleanup, got %d calls", llm.cleanCalls)
	}
	got := sectionTitles(res.Tree.Children)
	if len(got) != 2 || got[0] != "Alpha section" || got[1] != "Beta section" {
		t.Fatalf("unexpected sections %q", got)
	}
	if res.Tree.Children[1].Content != "beta body text" {
		t.Errorf("unexpected content %q", res.Tree.Children[1].Content)
	}
}

func TestConvert_LLMTOCFailureFallsBackToFlat(t *testing.T) {
	llm := &fakeLLM{tocErr: errors.New("model unavailable")}
	res, err := newTestConverter(llm).Convert(context.Background(), Request{Filename: "raw.txt", Data: []byte(llmText())}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Strategy != StrategyFlat {
		t.Errorf("expected strategy %q, got %q", StrategyFlat, res.Strategy)
	}
	if len(res.Warnings) < 2 || !strings.Contains(res.Warnings[0], "model unavailable") {
		t.Errorf("expected the llm error in warnings, got %q", res.Warnings)
	}
}

func TestConvert_NeuralCleanupRetries(t *testing.T) {
	llm := &fakeLLM{cleanErrs: []error{&cleanup.RetryableError{StatusCode: 503, Message: "busy"}}}
	res, err := newTestConverter(llm).Convert(context.Background(), Request{Filename: "book.txt", Data: []byte(bookText), Mode: ModeNeural}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected retry to hide the transient error, got %q", res.Warnings)
	}
	if llm.cleanCalls != 4 {
		t.Errorf("expected 4 cleanup calls (one retry), got %d", llm.cleanCalls)
	}
	if got := res.Tree.Children[0].Content; got != "CLEAN: This book covers the basics." {
		t.Errorf("unexpected cleaned content %q", got)
	}
}

func TestConvert_NeuralFailureFallsBackToFast(t *testing.T) {
	llm := &fakeLLM{cleanErrs: []error{errors.New("bad request")}}
	res, err := newTestConverter(llm).Convert(context.Background(), Request{Filename: "book.txt", Data: []byte(bookText), Mode: ModeNeural}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Introduction") {
		t.Errorf("expected one fallback warning for the first section, got %q", res.Warnings)
	}
	if got := res.Tree.Children[0].Content; got != "This book covers the basics." {
		t.Errorf("expected fast-cleaned content, got %q", got)
	}
	if got := res.Tree.Children[1].Content; got != "CLEAN: Basics are fundamental." {
		t.Errorf("expected later sections to use the llm, got %q", got)
	}
}

func TestConvert_NeuralRequiresLLM(t *testing.T) {
	_, err := newNoLLMConverter().Convert(context.Background(), Request{Filename: "book.txt", Data: []byte(bookText), Mode: ModeNeural}, nil)
	if err == nil {
		t.Fatal("expected error for neural mode without an llm")
	}
}

func TestConvert_UnsupportedFormat(t *testing.T) {
	_, err := newNoLLMConverter().Convert(context.Background(), Request{Filename: "tool.exe", Data: []byte("MZ")}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConvert_CancelKeepsCompletedSections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelled := false
	progress := func(_ int, msg string) {
		if strings.HasPrefix(msg, "cleaning") && !cancelled {
			cancelled = true
			cancel()
		}
	}
	res, err := newNoLLMConverter().Convert(ctx, Request{Filename: "book.txt", Data: []byte(bookText)}, progress)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || !res.Partial {
		t.Fatalf("expected a partial result, got %+v", res)
	}
	if n := res.Tree.Count(); n != 1 {
		t.Errorf("expected 1 completed section, got %d", n)
	}
}

// blockingLLM holds every cleanup call until release is closed or the call's
// context ends.
type blockingLLM struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLLM) ExtractTOC(context.Context, string) ([]doctree.SequenceItem, error) {
	return nil, nil
}

func (b *blockingLLM) CleanFragment(ctx context.Context, frag chunker.Fragment) (string, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return "CLEAN: " + frag.Text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestConvertShared_CallerCancelDoesNotFailOthers(t *testing.T) {
	llm := &blockingLLM{started: make(chan struct{}), release: make(chan struct{})}
	c := newTestConverter(llm)
	req := Request{Filename: "book.txt", Data: []byte(bookText), Mode: ModeNeural}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := c.ConvertShared(ctxA, req)
		errA <- err
	}()
	<-llm.started

	type outcome struct {
		res *Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := c.ConvertShared(context.Background(), req)
		doneB <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected the cancelled caller to get context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(llm.release)
	select {
	case out := <-doneB:
		if out.err != nil {
			t.Fatalf("expected the other caller to succeed, got %v", out.err)
		}
		if got := out.res.Tree.Children[0].Content; got != "CLEAN: This book covers the basics." {
			t.Errorf("unexpected content %q", got)
		}
		if len(out.res.Warnings) != 0 {
			t.Errorf("expected no warnings, got %q", out.res.Warnings)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}

func TestConvertBatch(t *testing.T) {
	reqs := []Request{
		{Filename: "book.txt", Data: []byte(bookText)},
		{Filename: "bad.exe", Data: []byte("x")},
		{Filename: "empty.txt", Data: []byte("   ")},
		{Filename: "copy.txt", Data: []byte(bookText)},
	}
	items := newNoLLMConverter().ConvertBatch(context.Background(), reqs, 2)
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	for i, it := range items {
		if it.Filename != reqs[i].Filename {
			t.Errorf("item %d: expected %q, got %q", i, reqs[i].Filename, it.Filename)
		}
	}
	if items[0].Error != "" || items[0].Strategy != StrategyTOC || items[0].Sections != 3 {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if items[1].Error == "" || items[2].Error == "" {
		t.Errorf("expected errors for bad inputs, got %q and %q", items[1].Error, items[2].Error)
	}
	if items[3].XML != items[0].XML {
		t.Error("expected identical documents to produce identical XML")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeFast, false},
		{"fast", ModeFast, false},
		{" Neural ", ModeNeural, false},
		{"turbo", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in, ModeFast)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q): expected (%q, err=%v), got (%q, %v)", tt.in, tt.want, tt.wantErr, got, err)
		}
	}
}

func TestSectionTitle(t *testing.T) {
	tests := []struct {
		item doctree.SequenceItem
		want string
	}{
		{doctree.SequenceItem{Title: "Chapter 1. Basics", Level: 1}, "Chapter 1. Basics"},
		{doctree.SequenceItem{Title: "1.1 Overview", Level: 2}, "Overview"},
		{doctree.SequenceItem{Title: " Plain ", Level: 2}, "Plain"},
	}
	for _, tt := range tests {
		if got := sectionTitle(tt.item); got != tt.want {
			t.Errorf("sectionTitle(%q): expected %q, got %q", tt.item.Title, tt.want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.TOCPages = 12
	cfg.TOCMissLimit = 80
	cfg.BoundaryFallback = 500
	cfg.CleanupFragmentChars = 4000
	cfg.StripRunningHeaders = false

	opts := OptionsFromConfig(cfg)
	if opts.Parser.TOCPages != 12 || opts.TOC.MissLimit != 80 || opts.Locate.BoundaryFallback != 500 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Chunk.MaxChars != 4000 || opts.Chunk.MinChars != 10 {
		t.Errorf("unexpected chunk config %+v", opts.Chunk)
	}
	if opts.Parser.StripRunningHeaders {
		t.Error("expected running header stripping to follow config")
	}
	if opts.Locate.BoundaryWindow != 0.2 {
		t.Errorf("expected default boundary window, got %v", opts.Locate.BoundaryWindow)
	}
}
