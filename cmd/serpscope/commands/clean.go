package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/serpscope"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [url|file|-]...",
	Short: "Clean HTML or Markdown pages and extract their headings",
	Long: `Clean strips markup, boilerplate and noise from HTML or Markdown and
reports the heading outline of the original document.

Inputs can be URLs, files, or "-" for stdin (the default). The format of
files and stdin is detected from the extension or content unless
--input-format is given.

Examples:
  # Clean a file with the strict preset
  serpscope clean --preset strict page.html

  # Headings only, as JSON
  serpscope clean --headings-only -f json page.md

  # Pipe HTML in
  curl -s https://example.com | serpscope clean`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	flags := cleanCmd.Flags()
	flags.String("input-format", "auto", "format of files and stdin: auto, html, markdown")
	flags.Bool("headings-only", false, "only output the heading outline")
	addCleanerFlags(cleanCmd)
	addScrapeFlags(cleanCmd)
}

// headingsResult is the --headings-only output.
type headingsResult struct {
	Source   string            `json:"source" yaml:"source"`
	Headings []cleaner.Heading `json:"headings" yaml:"headings"`
}

func (h headingsResult) Text() string {
	var sb strings.Builder
	sb.WriteString(h.Source)
	sb.WriteString("\n")
	for _, hd := range h.Headings {
		fmt.Fprintf(&sb, "%s%s: %s\n", strings.Repeat("  ", hd.Level-1), hd.Tag(), hd.Text)
	}
	return sb.String()
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	serveMetrics(ctx)

	if len(args) == 0 {
		args = []string{"-"}
	}
	inputFormat := viper.GetString("input_format")
	headingsOnly := viper.GetBool("headings_only")

	s, err := newSerpscope()
	if err != nil {
		return err
	}

	w, closeOutput, err := openOutput()
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	failed := 0
	for _, arg := range args {
		page, err := cleanInput(ctx, s, arg, inputFormat)
		if err != nil {
			logger.Error("clean failed", "source", arg, "error", err)
			failed++
			continue
		}
		if page.Partial {
			logger.Warn("processing budget exhausted, result is partial", "source", arg)
		}

		var item any = page
		if headingsOnly {
			item = headingsResult{Source: page.URL, Headings: page.Headings}
		}
		if err := w.Write(item); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if err := closeOutput(); err != nil {
		return err
	}
	logInfo("cleaned %d of %d input(s)", len(args)-failed, len(args))
	if failed > 0 {
		return fmt.Errorf("%d of %d input(s) failed", failed, len(args))
	}
	return nil
}

func cleanInput(ctx context.Context, s *serpscope.Serpscope, arg, inputFormat string) (*serpscope.PageResult, error) {
	if isURL(arg) {
		return s.CleanURL(ctx, arg)
	}

	content, name, err := readInput(arg)
	if err != nil {
		return nil, err
	}
	format, err := inputDocumentFormat(inputFormat, name, content)
	if err != nil {
		return nil, err
	}
	return s.CleanDocument(ctx, name, cleaner.Document{Format: format, Content: content})
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func readInput(arg string) (content, name string, err error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(arg) //#nosec G304 -- CLI tool reads user-specified input file
	if err != nil {
		return "", "", err
	}
	return string(data), arg, nil
}

// inputDocumentFormat resolves "auto" from the file extension, then from
// whether the content starts with a tag.
func inputDocumentFormat(flag, name, content string) (cleaner.Format, error) {
	if flag != "" && flag != "auto" {
		return cleaner.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".mdown":
		return cleaner.FormatMarkdown, nil
	case ".html", ".htm", ".xhtml":
		return cleaner.FormatHTML, nil
	}
	if strings.HasPrefix(strings.TrimSpace(content), "<") {
		return cleaner.FormatHTML, nil
	}
	return cleaner.FormatMarkdown, nil
}
