// Package serpscope is the public API: it looks up the pages ranking for a
// keyword, cleans them and asks an LLM to analyze them.
package serpscope

import (
	"time"

	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/scrape"
)

// Config holds all serpscope configuration.
type Config struct {
	// Scraping settings
	ScrapeURL    string
	ScrapeAPIKey string
	Local        bool           // Fetch pages directly instead of through the scraping API
	Format       cleaner.Format `validate:"oneof=html markdown"`
	MinDelay     time.Duration  `validate:"gte=0"`
	Timeout      time.Duration  `validate:"gte=0"`
	UserAgent    string

	// Search settings
	Language    string
	Country     string
	Limit       int `validate:"gte=1,lte=100"`
	Concurrency int `validate:"gte=1,lte=32"`

	// Cleaning settings, nil for cleaner.DefaultConfig()
	Cleaner *cleaner.Config `validate:"-"`

	// LLM settings
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	MaxRetries   int     `validate:"gte=0"`
	Temperature  float64 `validate:"gte=0,lte=2"`
	MaxTokens    int     `validate:"gte=0"`
	MaxPageChars int     `validate:"gte=0"`

	// Injected collaborators; nil builds the defaults from the settings above
	Fetcher  scrape.Fetcher  `validate:"-"`
	Searcher scrape.Searcher `validate:"-"`
	Analyzer Analyzer        `validate:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Format:       cleaner.FormatHTML,
		MinDelay:     scrape.DefaultMinDelay,
		Timeout:      scrape.DefaultTimeout,
		Language:     "en",
		Limit:        10,
		Concurrency:  4,
		MaxRetries:   2,
		Temperature:  0.2,
		MaxTokens:    4096,
		MaxPageChars: 24000,
	}
}

// Option configures serpscope.
type Option func(*Config)

// WithScrapeAPI sets the scraping API base URL and key.
func WithScrapeAPI(baseURL, apiKey string) Option {
	return func(c *Config) {
		c.ScrapeURL = baseURL
		c.ScrapeAPIKey = apiKey
	}
}

// WithLocalFetch fetches pages directly from their sites.
func WithLocalFetch(enabled bool) Option {
	return func(c *Config) {
		c.Local = enabled
	}
}

// WithFormat sets the page format requested from the fetcher.
func WithFormat(f cleaner.Format) Option {
	return func(c *Config) {
		c.Format = f
	}
}

// WithMinDelay sets the minimum delay between scraping requests.
func WithMinDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MinDelay = d
	}
}

// WithTimeout sets the per-request scraping timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithUserAgent sets the HTTP user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithLanguage sets the search and analysis language.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithCountry sets the search country.
func WithCountry(country string) Option {
	return func(c *Config) {
		c.Country = country
	}
}

// WithLimit sets how many search results are analyzed.
func WithLimit(n int) Option {
	return func(c *Config) {
		c.Limit = n
	}
}

// WithConcurrency sets how many pages are fetched and cleaned at once.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithCleanerConfig sets the cleaner configuration.
func WithCleanerConfig(cfg *cleaner.Config) Option {
	return func(c *Config) {
		c.Cleaner = cfg
	}
}

// WithProvider sets the LLM provider.
func WithProvider(provider string) Option {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithModel sets the LLM model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the LLM API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL sets a custom LLM API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithMaxRetries sets the retry attempts for unparseable analyses.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithTemperature sets the LLM temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens sets the LLM output token limit.
func WithMaxTokens(n int) Option {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithMaxPageChars limits the content sent per page.
func WithMaxPageChars(n int) Option {
	return func(c *Config) {
		c.MaxPageChars = n
	}
}

// WithFetcher injects a page fetcher.
func WithFetcher(f scrape.Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithSearcher injects a search client.
func WithSearcher(s scrape.Searcher) Option {
	return func(c *Config) {
		c.Searcher = s
	}
}

// WithAnalyzer injects an analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(c *Config) {
		c.Analyzer = a
	}
}
