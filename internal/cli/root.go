// Package cli implements the docstruct command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docstruct/internal/cleanup"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/pipeline"
)

// runOptions are the flags shared by convert and outline.
type runOptions struct {
	mode     string
	title    string
	tocPages int
	noLLM    bool
	verbose  bool
}

func (o *runOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.mode, "mode", "", "Cleanup mode (fast, neural); defaults to DEFAULT_MODE")
	cmd.Flags().StringVar(&o.title, "title", "", "Override the extracted document title")
	cmd.Flags().IntVar(&o.tocPages, "toc-pages", 0, "Leading PDF pages searched for a table of contents (0 = config)")
	cmd.Flags().BoolVar(&o.noLLM, "no-llm", false, "Disable the LLM even when configured")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Log pipeline progress to stderr")
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docstruct",
		Short: "Recover the section structure of documents",
		Long: `docstruct turns PDF, DOCX, Markdown, HTML and plain text documents into
structured XML. The table of contents is parsed, each entry is located in
the body text and the text between entries becomes the section content.

Configuration is read from CONFIG_FILE and the environment, as for the server.`,
		SilenceUsage: true,
	}
	root.AddCommand(newConvertCmd(), newOutlineCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run reads path and converts it with the configured pipeline.
func run(cmd *cobra.Command, path string, o *runOptions) (*pipeline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.noLLM {
		cfg.LLMEnabled = false
	}
	if o.tocPages > 0 {
		cfg.TOCPages = o.tocPages
	}
	mode, err := pipeline.ParseMode(o.mode, pipeline.Mode(cfg.DefaultMode))
	if err != nil {
		return nil, err
	}
	if mode == pipeline.ModeNeural && !cfg.LLMEnabled {
		return nil, fmt.Errorf("neural mode requires LLM_ENABLED")
	}

	var w io.Writer = io.Discard
	if o.verbose {
		w = cmd.ErrOrStderr()
	}
	log := slog.New(slog.NewTextHandler(w, nil))

	opts := pipeline.OptionsFromConfig(cfg)
	var conv *pipeline.Converter
	if cfg.LLMEnabled {
		llm := cleanup.NewLLMClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey, nil)
		defer llm.Close()
		conv = pipeline.NewConverter(llm, opts, log)
	} else {
		conv = pipeline.NewConverter(nil, opts, log)
	}

	var progress pipeline.ProgressFunc
	if o.verbose {
		progress = func(p int, msg string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", p, msg)
		}
	}
	return conv.Convert(cmd.Context(), pipeline.Request{
		Filename: path,
		Data:     data,
		Title:    o.title,
		Mode:     mode,
	}, progress)
}
