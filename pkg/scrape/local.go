package scrape

import (
	"context"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/jmylchreest/serpscope/pkg/cleaner"
)

// LocalFetcher downloads pages directly from their sites. Markdown is
// produced locally from the HTML.
type LocalFetcher struct {
	t    *transport
	conv *converter.Converter
}

// NewLocal creates a LocalFetcher.
func NewLocal(opts ...Option) *LocalFetcher {
	headers := map[string]string{"Accept": "text/html,application/xhtml+xml"}
	return &LocalFetcher{
		t: newTransport("local", headers, opts),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Fetch implements Fetcher.
func (f *LocalFetcher) Fetch(ctx context.Context, target string, format cleaner.Format) (*Page, error) {
	if format != cleaner.FormatHTML && format != cleaner.FormatMarkdown {
		return nil, fmt.Errorf("fetch %s: %w: %q", target, cleaner.ErrUnsupportedFormat, format)
	}

	body, err := f.t.get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	page := &Page{URL: target, Format: format, Content: string(body)}
	if format == cleaner.FormatMarkdown {
		md, err := f.conv.ConvertString(page.Content, converter.WithDomain(target))
		if err != nil {
			return nil, fmt.Errorf("convert %s to markdown: %w", target, err)
		}
		page.Content = md
	}
	return page, nil
}
