package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmylchreest/serpscope/pkg/cleaner"
)

// APIKeyHeader carries the scraping API key.
const APIKeyHeader = "X-API-Key"

// maxSearchPages caps pagination when the API keeps returning next pages.
const maxSearchPages = 50

// Client calls the scraping API:
//
//	GET {base}/v1/scrape?url=<u>&format=html|markdown
//	GET {base}/v1/search?q=<kw>&hl=<lang>&gl=<country>&page=<n>
type Client struct {
	base *url.URL
	t    *transport
}

type scrapeResponse struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

type searchResponse struct {
	Results  []SearchResult `json:"results"`
	NextPage int            `json:"next_page"`
}

// New creates a client for the API at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	headers := map[string]string{"Accept": "application/json"}
	if apiKey != "" {
		headers[APIKeyHeader] = apiKey
	}
	return &Client{base: base, t: newTransport("scrape", headers, opts)}, nil
}

// Fetch implements Fetcher using the scrape endpoint.
func (c *Client) Fetch(ctx context.Context, target string, format cleaner.Format) (*Page, error) {
	return c.Scrape(ctx, target, format)
}

// Scrape retrieves a page through the API in the requested format.
func (c *Client) Scrape(ctx context.Context, target string, format cleaner.Format) (*Page, error) {
	params := url.Values{}
	params.Set("url", target)
	params.Set("format", string(format))

	var resp scrapeResponse
	if err := c.getJSON(ctx, "v1/scrape", params, &resp); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", target, err)
	}

	page := &Page{URL: resp.URL, Format: format, Content: resp.Content}
	if page.URL == "" {
		page.URL = target
	}
	if resp.Format != "" {
		f, err := cleaner.ParseFormat(resp.Format)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", target, err)
		}
		page.Format = f
	}
	return page, nil
}

// Search pages through results until Limit results are collected or the
// API reports no next page.
func (c *Client) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	if strings.TrimSpace(q.Keyword) == "" {
		return nil, ErrEmptyQuery
	}

	var results []SearchResult
	for page, n := 1, 0; n < maxSearchPages; n++ {
		params := url.Values{}
		params.Set("q", q.Keyword)
		if q.Language != "" {
			params.Set("hl", q.Language)
		}
		if q.Country != "" {
			params.Set("gl", q.Country)
		}
		params.Set("page", strconv.Itoa(page))

		var resp searchResponse
		if err := c.getJSON(ctx, "v1/search", params, &resp); err != nil {
			return results, fmt.Errorf("search %q page %d: %w", q.Keyword, page, err)
		}
		results = append(results, resp.Results...)

		if q.Limit > 0 && len(results) >= q.Limit {
			return results[:q.Limit], nil
		}
		if resp.NextPage <= page {
			break
		}
		page = resp.NextPage
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = params.Encode()

	body, err := c.t.get(ctx, u.String())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
