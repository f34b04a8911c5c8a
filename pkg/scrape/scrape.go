// Package scrape retrieves search results and page content, either through
// the scraping API (Client) or directly from the site (LocalFetcher).
package scrape

import (
	"context"
	"fmt"

	"github.com/jmylchreest/serpscope/pkg/cleaner"
)

// Page is the raw content of one fetched URL.
type Page struct {
	URL     string         `json:"url" yaml:"url"`
	Format  cleaner.Format `json:"format" yaml:"format"`
	Content string         `json:"content" yaml:"content"`
}

// Document converts the page into cleaner input.
func (p *Page) Document() cleaner.Document {
	return cleaner.Document{Format: p.Format, Content: p.Content}
}

// SearchResult is one organic search result.
type SearchResult struct {
	Position int    `json:"position" yaml:"position"`
	URL      string `json:"url" yaml:"url"`
	Title    string `json:"title" yaml:"title"`
}

// Text renders the result as a numbered line with the URL beneath.
func (r SearchResult) Text() string {
	return fmt.Sprintf("%2d. %s\n    %s", r.Position, r.Title, r.URL)
}

// Query describes a search request. Language and Country are passed through
// as the hl and gl parameters. A zero Limit returns every page of results.
type Query struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Country  string `json:"country,omitempty" yaml:"country,omitempty"`
	Limit    int    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Fetcher retrieves page content in the requested format.
type Fetcher interface {
	Fetch(ctx context.Context, url string, format cleaner.Format) (*Page, error)
}

// Searcher returns search result URLs for a keyword.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]SearchResult, error)
}

var (
	_ Fetcher  = (*Client)(nil)
	_ Searcher = (*Client)(nil)
	_ Fetcher  = (*LocalFetcher)(nil)
)
