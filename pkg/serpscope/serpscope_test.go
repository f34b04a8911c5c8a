package serpscope

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/serpscope/pkg/analysis"
	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/llm"
	"github.com/jmylchreest/serpscope/pkg/scrape"
)

type fakeSearcher struct {
	results []scrape.SearchResult
	err     error
	query   scrape.Query
}

func (f *fakeSearcher) Search(_ context.Context, q scrape.Query) ([]scrape.SearchResult, error) {
	f.query = q
	return f.results, f.err
}

type fakeFetcher struct {
	pages    map[string]string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, format cleaner.Format) (*scrape.Page, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	content, ok := f.pages[url]
	if !ok {
		return nil, &scrape.StatusError{Code: 404, URL: url}
	}
	return &scrape.Page{URL: url, Format: format, Content: content}, nil
}

type fakeAnalyzer struct {
	mu  sync.Mutex
	req analysis.Request
	err error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (*analysis.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Report{
		Keyword:  req.Keyword,
		Language: req.Language,
		Analysis: map[string]any{"search_intent": "informational"},
		Pages:    len(req.Pages),
		Usage:    llm.Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

func page(title, body string) string {
	return fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", title, body)
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range llm.AvailableProviders() {
		t.Setenv(llm.APIKeyEnv(name), "")
	}
}

func TestNew_Validation(t *testing.T) {
	clearProviderEnv(t)

	tests := []struct {
		name string
		opts []Option
	}{
		{name: "zero concurrency", opts: []Option{WithConcurrency(0)}},
		{name: "unknown format", opts: []Option{WithFormat("pdf")}},
		{name: "limit too high", opts: []Option{WithLimit(1000)}},
		{name: "bad scrape url", opts: []Option{WithScrapeAPI("ftp://example.com", "k")}},
		{name: "invalid cleaner config", opts: []Option{WithCleanerConfig(&cleaner.Config{})}},
		{name: "unknown provider", opts: []Option{WithProvider("nope"), WithAPIKey("k")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestNew_WithoutCollaborators(t *testing.T) {
	clearProviderEnv(t)

	s, err := New()
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNoSearcher)

	_, err = s.Analyze(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNoAnalyzer)

	_, err = s.AnalyzeURLs(context.Background(), "k", []string{"https://example.com"})
	assert.ErrorIs(t, err, ErrNoAnalyzer)
}

func TestNew_DetectsProviderFromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	s, err := New()
	require.NoError(t, err)
	assert.NotNil(t, s.analyzer)
}

func TestSearch_PassesQuery(t *testing.T) {
	searcher := &fakeSearcher{results: []scrape.SearchResult{{Position: 1, URL: "https://a.example"}}}
	s, err := New(WithSearcher(searcher), WithAnalyzer(&fakeAnalyzer{}),
		WithLanguage("de"), WithCountry("at"), WithLimit(5))
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "kaffee")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, scrape.Query{Keyword: "kaffee", Language: "de", Country: "at", Limit: 5}, searcher.query)

	searcher.err = scrape.ErrTransient
	_, err = s.Search(context.Background(), "kaffee")
	assert.ErrorIs(t, err, scrape.ErrTransient)
}

func TestCleanDocument(t *testing.T) {
	s, err := New(WithAnalyzer(&fakeAnalyzer{}))
	require.NoError(t, err)

	t.Run("html", func(t *testing.T) {
		p, err := s.CleanDocument(context.Background(), "u", cleaner.Document{
			Format:  cleaner.FormatHTML,
			Content: page("Brewing guide", "Grind the beans just before brewing."),
		})
		require.NoError(t, err)
		assert.Equal(t, []cleaner.Heading{{Level: 1, Text: "Brewing guide"}}, p.Headings)
		assert.Contains(t, p.Content, "Grind the beans just before brewing.")
		assert.NotContains(t, p.Content, "<p>")
		assert.NotNil(t, p.Stats)
		assert.Empty(t, p.Error)
	})

	t.Run("markdown", func(t *testing.T) {
		p, err := s.CleanDocument(context.Background(), "u", cleaner.Document{
			Format:  cleaner.FormatMarkdown,
			Content: "# Title\n\nSome **bold** text.",
		})
		require.NoError(t, err)
		assert.Equal(t, []cleaner.Heading{{Level: 1, Text: "Title"}}, p.Headings)
		assert.Contains(t, p.Content, "Some bold text.")
	})

	t.Run("empty content", func(t *testing.T) {
		p, err := s.CleanDocument(context.Background(), "u", cleaner.Document{Format: cleaner.FormatHTML, Content: "  "})
		assert.ErrorIs(t, err, cleaner.ErrInvalidInput)
		assert.ErrorIs(t, p.Err(), cleaner.ErrInvalidInput)
		assert.NotEmpty(t, p.Error)
	})
}

func TestCleanURLs(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://a.example": page("A", "First page body."),
			"https://c.example": page("C", "Third page body."),
		},
		delay: 20 * time.Millisecond,
	}
	s, err := New(WithFetcher(fetcher), WithAnalyzer(&fakeAnalyzer{}), WithConcurrency(2))
	require.NoError(t, err)

	urls := []string{"https://a.example", "https://b.example", "https://c.example", "https://a.example"}
	pages, err := s.CleanURLs(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, pages, len(urls))

	for i, p := range pages {
		assert.Equal(t, urls[i], p.URL, "order preserved")
	}
	assert.Contains(t, pages[0].Content, "First page body.")
	assert.Contains(t, pages[2].Content, "Third page body.")

	var statusErr *scrape.StatusError
	require.ErrorAs(t, pages[1].Err(), &statusErr)
	assert.Equal(t, 404, statusErr.Code)
	assert.Contains(t, pages[1].Error, "fetch failed")

	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(2))
}

func TestCleanURLs_Canceled(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}, delay: time.Second}
	s, err := New(WithFetcher(fetcher), WithAnalyzer(&fakeAnalyzer{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := s.CleanURLs(ctx, []string{"https://a.example", "https://b.example"})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, pages, 2)
	assert.ErrorIs(t, pages[0].Err(), context.Canceled)
}

func TestAnalyze(t *testing.T) {
	searcher := &fakeSearcher{results: []scrape.SearchResult{
		{Position: 1, URL: "https://a.example", Title: "A"},
		{Position: 2, URL: "https://b.example", Title: "B"},
		{Position: 3, URL: "https://c.example", Title: "C"},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example": page("Alpha", "Alpha body text."),
		"https://c.example": page("Gamma", "Gamma body text."),
	}}
	analyzer := &fakeAnalyzer{}

	s, err := New(WithSearcher(searcher), WithFetcher(fetcher), WithAnalyzer(analyzer), WithLanguage("fr"))
	require.NoError(t, err)

	run, err := s.Analyze(context.Background(), "cafe")
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, "cafe", run.Keyword)
	assert.Equal(t, "fr", run.Language)
	assert.Len(t, run.Results, 3)
	require.Len(t, run.Pages, 3)
	assert.Equal(t, 2, run.Pages[1].Position)
	assert.Equal(t, "B", run.Pages[1].Title)
	require.Len(t, run.Failed(), 1)
	assert.Equal(t, "https://b.example", run.Failed()[0].URL)
	assert.True(t, run.Duration > 0)

	require.NotNil(t, run.Report)
	assert.Equal(t, "informational", run.Report.Analysis["search_intent"])

	require.Len(t, analyzer.req.Pages, 2)
	assert.Equal(t, "https://a.example", analyzer.req.Pages[0].URL)
	assert.Equal(t, []cleaner.Heading{{Level: 1, Text: "Alpha"}}, analyzer.req.Pages[0].Headings)
	assert.Contains(t, analyzer.req.Pages[1].Content, "Gamma body text.")
	assert.Equal(t, "fr", analyzer.req.Language)

	text := run.Text()
	assert.Contains(t, text, "Pages: 2 fetched, 1 failed")
	assert.Contains(t, text, "https://b.example")
}

func TestAnalyze_Failures(t *testing.T) {
	results := []scrape.SearchResult{{Position: 1, URL: "https://a.example"}}
	analyzerErr := errors.New("provider down")

	t.Run("search error", func(t *testing.T) {
		s, err := New(WithSearcher(&fakeSearcher{err: scrape.ErrEmptyQuery}), WithAnalyzer(&fakeAnalyzer{}))
		require.NoError(t, err)
		_, err = s.Analyze(context.Background(), "")
		assert.ErrorIs(t, err, scrape.ErrEmptyQuery)
	})

	t.Run("no pages", func(t *testing.T) {
		s, err := New(WithSearcher(&fakeSearcher{results: results}),
			WithFetcher(&fakeFetcher{pages: map[string]string{}}), WithAnalyzer(&fakeAnalyzer{}))
		require.NoError(t, err)
		run, err := s.Analyze(context.Background(), "k")
		assert.ErrorIs(t, err, ErrNoPages)
		require.NotNil(t, run)
		assert.Len(t, run.Failed(), 1)
	})

	t.Run("analyzer error", func(t *testing.T) {
		s, err := New(WithSearcher(&fakeSearcher{results: results}),
			WithFetcher(&fakeFetcher{pages: map[string]string{"https://a.example": page("A", "Body.")}}),
			WithAnalyzer(&fakeAnalyzer{err: analyzerErr}))
		require.NoError(t, err)
		run, err := s.Analyze(context.Background(), "k")
		assert.ErrorIs(t, err, analyzerErr)
		require.NotNil(t, run)
		assert.Nil(t, run.Report)
	})
}

func TestPageResult_Text(t *testing.T) {
	p := &PageResult{
		URL:      "https://a.example",
		Content:  "Body",
		Headings: []cleaner.Heading{{Level: 1, Text: "Top"}, {Level: 2, Text: "Sub"}},
		Stats:    &cleaner.Stats{InputBytes: 2048, OutputBytes: 4},
	}
	text := p.Text()
	assert.Contains(t, text, "URL: https://a.example")
	assert.Contains(t, text, "Size: 2.0 kB -> 4 B")
	assert.Contains(t, text, "h1: Top\n  h2: Sub\n")
	assert.Contains(t, text, "Body")

	failed := (&PageResult{URL: "u"}).fail(errors.New("boom"))
	assert.Contains(t, failed.Text(), "Error: boom")
}
