package serpscope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/pkg/analysis"
	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/llm"
	"github.com/jmylchreest/serpscope/pkg/scrape"
)

var (
	// ErrNoSearcher is returned by Search when no scraping API is configured.
	ErrNoSearcher = errors.New("no search client configured (set a scraping API URL)")

	// ErrNoAnalyzer is returned by Analyze when no LLM provider is available.
	ErrNoAnalyzer = errors.New("no LLM provider configured (set a provider or an API key environment variable)")

	// ErrNoPages is returned when none of the pages could be fetched and cleaned.
	ErrNoPages = errors.New("no pages could be fetched and cleaned")
)

// Analyzer produces an LLM report from cleaned pages.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
}

// PageResult is the outcome of fetching and cleaning one URL. A failed page
// carries Error and no content.
type PageResult struct {
	URL           string            `json:"url" yaml:"url"`
	Position      int               `json:"position,omitempty" yaml:"position,omitempty"`
	Title         string            `json:"title,omitempty" yaml:"title,omitempty"`
	Format        cleaner.Format    `json:"format,omitempty" yaml:"format,omitempty"`
	Content       string            `json:"content,omitempty" yaml:"content,omitempty"`
	Headings      []cleaner.Heading `json:"headings,omitempty" yaml:"headings,omitempty"`
	Stats         *cleaner.Stats    `json:"stats,omitempty" yaml:"stats,omitempty"`
	Warnings      []cleaner.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Partial       bool              `json:"partial,omitempty" yaml:"partial,omitempty"`
	FetchDuration time.Duration     `json:"fetch_duration" yaml:"fetch_duration"`
	CleanDuration time.Duration     `json:"clean_duration" yaml:"clean_duration"`
	Error         string            `json:"error,omitempty" yaml:"error,omitempty"`

	err error
}

// Err returns the error that stopped this page, if any.
func (p *PageResult) Err() error {
	return p.err
}

func (p *PageResult) fail(err error) *PageResult {
	p.err = err
	p.Error = err.Error()
	return p
}

// Text renders the page for terminal output.
func (p *PageResult) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", p.URL)
	if p.err != nil {
		fmt.Fprintf(&sb, "Error: %s\n", p.Error)
		return sb.String()
	}
	if p.Stats != nil {
		fmt.Fprintf(&sb, "Size: %s -> %s", humanize.Bytes(uint64(p.Stats.InputBytes)), humanize.Bytes(uint64(p.Stats.OutputBytes)))
		if p.Partial {
			sb.WriteString(" (partial)")
		}
		sb.WriteString("\n")
	}
	if len(p.Headings) > 0 {
		sb.WriteString("\nHeadings:\n")
		for _, h := range p.Headings {
			fmt.Fprintf(&sb, "%s%s: %s\n", strings.Repeat("  ", h.Level-1), h.Tag(), h.Text)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(p.Content)
	return sb.String()
}

// Run is the result of a full keyword analysis.
type Run struct {
	ID        string                `json:"id" yaml:"id"`
	Keyword   string                `json:"keyword" yaml:"keyword"`
	Language  string                `json:"language" yaml:"language"`
	Country   string                `json:"country,omitempty" yaml:"country,omitempty"`
	StartedAt time.Time             `json:"started_at" yaml:"started_at"`
	Duration  time.Duration         `json:"duration" yaml:"duration"`
	Results   []scrape.SearchResult `json:"results,omitempty" yaml:"results,omitempty"`
	Pages     []*PageResult         `json:"pages" yaml:"pages"`
	Report    *analysis.Report      `json:"report,omitempty" yaml:"report,omitempty"`
}

// Failed returns the pages that could not be fetched or cleaned.
func (r *Run) Failed() []*PageResult {
	var out []*PageResult
	for _, p := range r.Pages {
		if p.err != nil {
			out = append(out, p)
		}
	}
	return out
}

// Text renders the run for terminal output.
func (r *Run) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s (%s)\n", r.ID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Pages: %d fetched, %d failed\n", len(r.Pages)-len(r.Failed()), len(r.Failed()))
	for _, p := range r.Failed() {
		fmt.Fprintf(&sb, "  %s: %s\n", p.URL, p.Error)
	}
	if r.Report != nil {
		sb.WriteString("\n")
		sb.WriteString(r.Report.Text())
	}
	return sb.String()
}

// Serpscope is the main entry point.
type Serpscope struct {
	fetcher  scrape.Fetcher
	searcher scrape.Searcher
	analyzer Analyzer
	config   Config
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New creates a Serpscope instance. The searcher needs a scraping API URL,
// the analyzer needs an LLM provider; without them Search and Analyze fail
// but cleaning still works.
func New(opts ...Option) (*Serpscope, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Cleaner != nil {
		if err := cfg.Cleaner.Validate(); err != nil {
			return nil, err
		}
	}

	scrapeOpts := []scrape.Option{
		scrape.WithMinDelay(cfg.MinDelay),
		scrape.WithTimeout(cfg.Timeout),
	}
	if cfg.UserAgent != "" {
		scrapeOpts = append(scrapeOpts, scrape.WithUserAgent(cfg.UserAgent))
	}

	var client *scrape.Client
	if cfg.ScrapeURL != "" && (cfg.Searcher == nil || (cfg.Fetcher == nil && !cfg.Local)) {
		var err error
		client, err = scrape.New(cfg.ScrapeURL, cfg.ScrapeAPIKey, scrapeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create scrape client: %w", err)
		}
	}

	s := &Serpscope{
		fetcher:  cfg.Fetcher,
		searcher: cfg.Searcher,
		analyzer: cfg.Analyzer,
		config:   cfg,
	}
	if s.searcher == nil && client != nil {
		s.searcher = client
	}
	if s.fetcher == nil {
		if client != nil && !cfg.Local {
			s.fetcher = client
		} else {
			s.fetcher = scrape.NewLocal(scrapeOpts...)
		}
	}
	if s.analyzer == nil {
		a, err := newAnalyzer(cfg)
		if err != nil {
			return nil, err
		}
		s.analyzer = a
	}
	return s, nil
}

// newAnalyzer builds an analyzer from the LLM settings, detecting the
// provider from the environment when none is set. It returns nil when no
// provider is available.
func newAnalyzer(cfg Config) (Analyzer, error) {
	provider, key := cfg.Provider, cfg.APIKey
	if provider == "" {
		detected, envKey := llm.DetectProvider()
		if detected == "" {
			return nil, nil
		}
		provider = detected
		if key == "" {
			key = envKey
		}
	}

	pcfg := llm.DefaultProviderConfig()
	pcfg.APIKey = key
	pcfg.BaseURL = cfg.BaseURL
	pcfg.Model = cfg.Model
	p, err := llm.NewProvider(provider, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return analysis.New(p,
		analysis.WithMaxRetries(cfg.MaxRetries),
		analysis.WithTemperature(cfg.Temperature),
		analysis.WithMaxTokens(cfg.MaxTokens),
		analysis.WithMaxPageChars(cfg.MaxPageChars),
	), nil
}

// Config returns the effective configuration.
func (s *Serpscope) Config() Config {
	return s.config
}

// Search returns up to Limit organic results for keyword.
func (s *Serpscope) Search(ctx context.Context, keyword string) ([]scrape.SearchResult, error) {
	if s.searcher == nil {
		return nil, ErrNoSearcher
	}
	results, err := s.searcher.Search(ctx, scrape.Query{
		Keyword:  keyword,
		Language: s.config.Language,
		Country:  s.config.Country,
		Limit:    s.config.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// CleanDocument cleans one document. url is only used for reporting.
func (s *Serpscope) CleanDocument(ctx context.Context, url string, doc cleaner.Document) (*PageResult, error) {
	page := &PageResult{URL: url, Format: doc.Format}

	c, err := cleaner.New(doc, s.config.Cleaner)
	if err != nil {
		return page.fail(err), err
	}

	start := time.Now()
	res := c.CleanWithStats(ctx)
	page.CleanDuration = time.Since(start)
	page.Content = res.Content
	page.Headings = res.Headings
	page.Stats = res.Stats
	page.Warnings = res.Warnings
	page.Partial = res.Partial

	logger.Debug("page cleaned",
		"url", url,
		"cleaner", c.Name(),
		"input_size", res.Stats.InputBytes,
		"output_size", res.Stats.OutputBytes,
		"headings", len(res.Headings),
		"partial", res.Partial,
		"duration", page.CleanDuration)
	return page, nil
}

// CleanURL fetches url and cleans it.
func (s *Serpscope) CleanURL(ctx context.Context, url string) (*PageResult, error) {
	start := time.Now()
	fetched, err := s.fetcher.Fetch(ctx, url, s.config.Format)
	fetchDuration := time.Since(start)
	if err != nil {
		err = fmt.Errorf("fetch failed: %w", err)
		page := &PageResult{URL: url, Format: s.config.Format, FetchDuration: fetchDuration}
		return page.fail(err), err
	}

	page, err := s.CleanDocument(ctx, url, fetched.Document())
	page.FetchDuration = fetchDuration
	return page, err
}

// CleanURLs fetches and cleans urls concurrently. Per-page failures are
// recorded on the returned pages, which keep the order of urls. The error
// is only set when ctx ends.
func (s *Serpscope) CleanURLs(ctx context.Context, urls []string) ([]*PageResult, error) {
	pages := make([]*PageResult, len(urls))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			page, err := s.CleanURL(ctx, u)
			if err != nil {
				logger.Warn("page skipped", "url", u, "error", err)
			}
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return pages, err
	}
	return pages, nil
}

// Analyze searches for keyword, cleans the ranking pages and analyzes them.
func (s *Serpscope) Analyze(ctx context.Context, keyword string) (*Run, error) {
	if s.analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	results, err := s.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}

	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}
	run, err := s.AnalyzeURLs(ctx, keyword, urls)
	if run != nil {
		run.Results = results
		for i, p := range run.Pages {
			p.Position = results[i].Position
			p.Title = results[i].Title
		}
	}
	return run, err
}

// AnalyzeURLs cleans the given pages and analyzes them for keyword.
// The partial run is returned alongside any error.
func (s *Serpscope) AnalyzeURLs(ctx context.Context, keyword string, urls []string) (*Run, error) {
	if s.analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	run := &Run{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Language:  s.config.Language,
		Country:   s.config.Country,
		StartedAt: time.Now(),
	}
	log := logger.With("run_id", run.ID)
	log.Info("analysis run started", "keyword", keyword, "urls", len(urls))
	defer func() { run.Duration = time.Since(run.StartedAt) }()

	pages, err := s.CleanURLs(ctx, urls)
	run.Pages = pages
	if err != nil {
		return run, err
	}

	req := analysis.Request{Keyword: keyword, Language: s.config.Language}
	for _, p := range pages {
		if p.err == nil {
			req.Pages = append(req.Pages, analysis.Page{URL: p.URL, Content: p.Content, Headings: p.Headings})
		}
	}
	if len(req.Pages) == 0 {
		return run, ErrNoPages
	}

	report, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return run, fmt.Errorf("analysis failed: %w", err)
	}
	run.Report = report

	log.Info("analysis run complete",
		"pages", len(req.Pages),
		"failed", len(pages)-len(req.Pages),
		"tokens", report.Usage.Total(),
		"duration", time.Since(run.StartedAt))
	return run, nil
}
