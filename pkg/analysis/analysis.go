// Package analysis asks an LLM for a keyword and content analysis of the
// cleaned pages that rank for a search term.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/pkg/cleaner"
	"github.com/jmylchreest/serpscope/pkg/llm"
)

var (
	// ErrEmptyPages is returned when a request has no page with content.
	ErrEmptyPages = errors.New("no pages with content to analyze")

	// ErrEmptyKeyword is returned when the request keyword is blank.
	ErrEmptyKeyword = errors.New("keyword is empty")

	// ErrInvalidJSON wraps responses that could not be parsed as a JSON object.
	ErrInvalidJSON = errors.New("response is not a JSON object")
)

// Page is one cleaned search result.
type Page struct {
	URL      string            `json:"url" yaml:"url"`
	Content  string            `json:"content" yaml:"content"`
	Headings []cleaner.Heading `json:"headings,omitempty" yaml:"headings,omitempty"`
}

// Request is the input to Analyze.
type Request struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Language string `json:"language" yaml:"language"`
	Pages    []Page `json:"pages" yaml:"pages"`
}

// Report is the parsed analysis with call metadata.
type Report struct {
	Keyword  string         `json:"keyword" yaml:"keyword"`
	Language string         `json:"language" yaml:"language"`
	Analysis map[string]any `json:"analysis" yaml:"analysis"`
	Provider string         `json:"provider" yaml:"provider"`
	Model    string         `json:"model" yaml:"model"`
	Usage    llm.Usage      `json:"usage" yaml:"usage"`
	Pages    int            `json:"pages" yaml:"pages"`
	Attempts int            `json:"attempts" yaml:"attempts"`
	Duration time.Duration  `json:"duration" yaml:"duration"`
	Raw      string         `json:"-" yaml:"-"`
}

// Text renders the report for terminal output.
func (r *Report) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Keyword:  %s (%s)\n", r.Keyword, LanguageName(r.Language))
	fmt.Fprintf(&sb, "Pages:    %d\n", r.Pages)
	fmt.Fprintf(&sb, "Model:    %s/%s, %d attempt(s), %d tokens, %s\n",
		r.Provider, r.Model, r.Attempts, r.Usage.Total(), r.Duration.Round(time.Millisecond))
	body, err := json.MarshalIndent(r.Analysis, "", "  ")
	if err != nil {
		body = []byte(r.Raw)
	}
	sb.WriteString("\n")
	sb.Write(body)
	sb.WriteString("\n")
	return sb.String()
}

// Config holds analyzer settings.
type Config struct {
	MaxRetries   int     // Extra attempts after an unparseable response
	Temperature  float64 // Sampling temperature
	MaxTokens    int     // Output token limit
	MaxPageChars int     // Per-page content limit in bytes, 0 for none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   2,
		Temperature:  0.2,
		MaxTokens:    4096,
		MaxPageChars: 24000,
	}
}

// Option configures an Analyzer.
type Option func(*Config)

// WithMaxRetries sets the number of extra attempts after invalid JSON.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithMaxTokens sets the maximum output tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithMaxPageChars limits how much of each page is sent.
func WithMaxPageChars(n int) Option {
	return func(c *Config) { c.MaxPageChars = n }
}

// Analyzer sends cleaned pages to an LLM and parses the JSON analysis.
type Analyzer struct {
	provider llm.Provider
	cfg      Config
}

// New creates an Analyzer. The provider is instrumented for metrics.
func New(provider llm.Provider, opts ...Option) *Analyzer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Analyzer{provider: llm.Instrument(provider), cfg: cfg}
}

// Analyze builds the prompt, calls the provider and parses its answer.
// Provider errors are returned at once; unparseable answers are retried
// with the parse error fed back to the model.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()

	if strings.TrimSpace(req.Keyword) == "" {
		return nil, ErrEmptyKeyword
	}
	pages := make([]Page, 0, len(req.Pages))
	for _, p := range req.Pages {
		if strings.TrimSpace(p.Content) != "" {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return nil, ErrEmptyPages
	}
	req.Pages = pages
	req.Language = NormalizeLanguage(req.Language)

	prompt, err := buildUserPrompt(req, a.cfg.MaxPageChars)
	if err != nil {
		return nil, err
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(req.Language)},
		{Role: llm.RoleUser, Content: prompt},
	}

	logger.Debug("analysis starting",
		"keyword", req.Keyword,
		"language", req.Language,
		"pages", len(pages),
		"prompt_size", len(prompt),
		"provider", a.provider.Name(),
		"model", a.provider.Model())

	report := &Report{
		Keyword:  req.Keyword,
		Language: req.Language,
		Provider: a.provider.Name(),
		Model:    a.provider.Model(),
		Pages:    len(pages),
	}

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		resp, err := a.provider.Execute(ctx, llm.Request{
			Messages:    messages,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
			JSON:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("analysis LLM call: %w", err)
		}

		report.Attempts = attempt + 1
		report.Usage.InputTokens += resp.Usage.InputTokens
		report.Usage.OutputTokens += resp.Usage.OutputTokens
		if resp.Model != "" {
			report.Model = resp.Model
		}
		report.Raw = resp.Content

		data, err := ParseJSON(resp.Content)
		if err == nil {
			report.Analysis = data
			report.Duration = time.Since(start)
			logger.Debug("analysis complete",
				"attempts", report.Attempts,
				"input_tokens", report.Usage.InputTokens,
				"output_tokens", report.Usage.OutputTokens,
				"duration", report.Duration)
			return report, nil
		}

		lastErr = err
		logger.Debug("analysis response not parseable", "attempt", attempt+1, "finish_reason", resp.FinishReason, "error", err)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: correctionPrompt(err)},
		)
	}

	return nil, fmt.Errorf("analysis failed after %d attempts: %w", a.cfg.MaxRetries+1, lastErr)
}
