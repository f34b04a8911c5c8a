package scrape_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/scrape"
)

func fastOptions(extra ...scrape.Option) []scrape.Option {
	return append([]scrape.Option{
		scrape.WithMinDelay(0),
		scrape.WithRetryDelays([]time.Duration{time.Millisecond, time.Millisecond}),
		scrape.WithTimeout(2 * time.Second),
	}, extra...)
}

func newClient(t *testing.T, baseURL string, opts ...scrape.Option) *scrape.Client {
	t.Helper()
	c, err := scrape.New(baseURL, "test-key", fastOptions(opts...)...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "ftp://example.com", "://bad", "http://"} {
		_, err := scrape.New(base, "key")
		assert.ErrorIs(t, err, scrape.ErrInvalidBaseURL, "base %q", base)
	}

	_, err := scrape.New("https://api.example.com/root", "key")
	assert.NoError(t, err)
}

func TestClient_Scrape(t *testing.T) {
	t.Parallel()

	t.Run("sends key and parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/scrape", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get(scrape.APIKeyHeader))
			assert.Equal(t, "https://example.com/a", r.URL.Query().Get("url"))
			assert.Equal(t, "markdown", r.URL.Query().Get("format"))
			writeJSON(w, map[string]string{
				"url":     "https://example.com/a",
				"format":  "markdown",
				"content": "# Title\n\nBody",
			})
		}))
		defer server.Close()

		page, err := newClient(t, server.URL).Scrape(context.Background(), "https://example.com/a", cleaner.FormatMarkdown)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", page.URL)
		assert.Equal(t, cleaner.FormatMarkdown, page.Format)
		assert.Equal(t, "# Title\n\nBody", page.Content)
		assert.Equal(t, cleaner.Document{Format: cleaner.FormatMarkdown, Content: "# Title\n\nBody"}, page.Document())
	})

	t.Run("keeps path of base URL", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/scrape", r.URL.Path)
			writeJSON(w, map[string]string{"content": "<p>x</p>"})
		}))
		defer server.Close()

		page, err := newClient(t, server.URL+"/api").Scrape(context.Background(), "https://example.com", cleaner.FormatHTML)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", page.URL)
		assert.Equal(t, cleaner.FormatHTML, page.Format)
	})

	t.Run("rejects unknown format in response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"format": "pdf", "content": "x"})
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).Scrape(context.Background(), "https://example.com", cleaner.FormatHTML)
		assert.ErrorIs(t, err, cleaner.ErrUnsupportedFormat)
	})

	t.Run("wraps invalid JSON", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).Scrape(context.Background(), "https://example.com", cleaner.FormatHTML)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})
}

func TestClient_Retry(t *testing.T) {
	t.Parallel()

	t.Run("retries transient statuses", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, map[string]string{"content": "ok"})
		}))
		defer server.Close()

		page, err := newClient(t, server.URL).Scrape(context.Background(), "https://example.com", cleaner.FormatHTML)
		require.NoError(t, err)
		assert.Equal(t, "ok", page.Content)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("gives up after last delay", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).Scrape(context.Background(), "https://example.com", cleaner.FormatHTML)
		require.Error(t, err)
		assert.ErrorIs(t, err, scrape.ErrTransient)

		var statusErr *scrape.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad key"))
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).Scrape(context.Background(), "https://example.com", cleaner.FormatHTML)
		require.Error(t, err)
		assert.NotErrorIs(t, err, scrape.ErrTransient)
		assert.Contains(t, err.Error(), "401")
		assert.Contains(t, err.Error(), "bad key")
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newClient(t, server.URL).Scrape(ctx, "https://example.com", cleaner.FormatHTML)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_RateLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"content": "ok"})
	}))
	defer server.Close()

	c := newClient(t, server.URL, scrape.WithMinDelay(100*time.Millisecond))

	_, err := c.Scrape(context.Background(), "https://example.com/1", cleaner.FormatHTML)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Scrape(context.Background(), "https://example.com/2", cleaner.FormatHTML)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "second call should wait for the limiter")
}

func searchServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	pages := map[int]struct {
		results []scrape.SearchResult
		next    int
	}{
		1: {results: []scrape.SearchResult{{Position: 1, URL: "https://a.example"}, {Position: 2, URL: "https://b.example"}}, next: 2},
		2: {results: []scrape.SearchResult{{Position: 3, URL: "https://c.example"}, {Position: 4, URL: "https://d.example"}}, next: 3},
		3: {results: []scrape.SearchResult{{Position: 5, URL: "https://e.example"}}},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "de", r.URL.Query().Get("hl"))
		assert.Equal(t, "at", r.URL.Query().Get("gl"))

		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		p := pages[n]
		writeJSON(w, map[string]any{"results": p.results, "next_page": p.next})
	}))
}

func TestClient_Search(t *testing.T) {
	t.Parallel()

	t.Run("follows next pages", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := searchServer(t, &hits)
		defer server.Close()

		results, err := newClient(t, server.URL).Search(context.Background(), scrape.Query{Keyword: "golang", Language: "de", Country: "at"})
		require.NoError(t, err)
		require.Len(t, results, 5)
		assert.Equal(t, "https://e.example", results[4].URL)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("stops at limit", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := searchServer(t, &hits)
		defer server.Close()

		results, err := newClient(t, server.URL).Search(context.Background(), scrape.Query{Keyword: "golang", Language: "de", Country: "at", Limit: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, 3, results[2].Position)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("stops when next page does not advance", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			writeJSON(w, map[string]any{"results": []scrape.SearchResult{{Position: 1, URL: "https://a.example"}}, "next_page": 1})
		}))
		defer server.Close()

		results, err := newClient(t, server.URL).Search(context.Background(), scrape.Query{Keyword: "loop"})
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("rejects empty keyword", func(t *testing.T) {
		t.Parallel()

		c := newClient(t, "http://127.0.0.1:1")
		_, err := c.Search(context.Background(), scrape.Query{Keyword: "  "})
		assert.ErrorIs(t, err, scrape.ErrEmptyQuery)
	})
}
