package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "List the search results for a keyword",
	Long: `Search queries the scraping API and lists the organic results.

Examples:
  serpscope search --scrape-url https://api.example.com -n 5 "cold brew ratio"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	addSearchFlags(searchCmd)
	addScrapeFlags(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	serveMetrics(ctx)

	keyword := strings.Join(args, " ")

	s, err := newSerpscope()
	if err != nil {
		return err
	}

	results, err := s.Search(ctx, keyword)
	if err != nil {
		return err
	}

	w, closeOutput, err := openOutput()
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	for _, r := range results {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := closeOutput(); err != nil {
		return err
	}
	logInfo("%d result(s) for %q", len(results), keyword)
	return nil
}
