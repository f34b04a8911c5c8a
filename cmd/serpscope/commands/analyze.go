package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/pkg/serpscope"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <keyword>",
	Short: "Analyze the pages ranking for a keyword with an LLM",
	Long: `Analyze searches for the keyword, fetches and cleans the ranking pages
and asks an LLM for the search intent, keywords, entities, topics and
content gaps.

With --url the search is skipped and the given pages are analyzed.

Examples:
  # Auto-detect the provider from ANTHROPIC_API_KEY, OPENAI_API_KEY, ...
  serpscope analyze --scrape-url https://api.example.com "sourdough starter"

  # Analyze known pages in German with OpenRouter
  serpscope analyze -p openrouter -l de \
      --url https://example.de/a --url https://example.de/b "sauerteig"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()
	flags.StringSliceP("url", "u", nil, "analyze these URLs instead of searching (can be repeated)")
	flags.Bool("include-content", false, "include cleaned page content in the output")
	addSearchFlags(analyzeCmd)
	addScrapeFlags(analyzeCmd)
	addCleanerFlags(analyzeCmd)
	addLLMFlags(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	serveMetrics(ctx)

	keyword := strings.Join(args, " ")
	urls, _ := cmd.Flags().GetStringSlice("url")

	s, err := newSerpscope()
	if err != nil {
		return err
	}

	var run *serpscope.Run
	if len(urls) > 0 {
		logInfo("analyzing %d page(s) for %q", len(urls), keyword)
		run, err = s.AnalyzeURLs(ctx, keyword, urls)
	} else {
		logInfo("analyzing search results for %q", keyword)
		run, err = s.Analyze(ctx, keyword)
	}
	if run == nil {
		return err
	}
	if err != nil {
		logger.Error("analysis incomplete", "run_id", run.ID, "error", err)
	}

	if !viper.GetBool("include_content") {
		for _, p := range run.Pages {
			p.Content = ""
		}
	}

	w, closeOutput, openErr := openOutput()
	if openErr != nil {
		return openErr
	}
	defer func() { _ = closeOutput() }()

	if writeErr := w.Write(run); writeErr != nil {
		return fmt.Errorf("failed to write output: %w", writeErr)
	}
	if closeErr := closeOutput(); closeErr != nil {
		return closeErr
	}

	if run.Report != nil {
		logInfo("analysis complete: %d page(s), %d tokens, %s", run.Report.Pages, run.Report.Usage.Total(), run.Duration.Round(time.Millisecond))
	}
	return err
}
