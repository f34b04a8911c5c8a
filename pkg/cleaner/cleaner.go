// Package cleaner turns raw HTML or Markdown pages into plain text suitable
// for analysis, and extracts their heading outline.
//
// A Cleaner is built for one document with New or Select. Cleaning runs a
// fixed list of stages under a processing budget; a stage that fails is
// skipped with a warning, and when the budget runs out the text processed so
// far is returned and flagged as partial. Cleaning never returns a timeout
// error.
package cleaner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/internal/metrics"
)

// Format identifies the markup of a Document.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat converts a format tag into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Document is the raw input to a Cleaner. It is never modified.
type Document struct {
	Format  Format `json:"format" yaml:"format"`
	Content string `json:"content" yaml:"content"`
}

func (d Document) validate(limit int) error {
	if strings.TrimSpace(d.Content) == "" {
		return &InputError{Reason: "content is empty"}
	}
	if limit > 0 && len(d.Content) > limit {
		return &InputError{Reason: "content exceeds maximum length", Size: len(d.Content), Limit: limit}
	}
	return nil
}

// Cleaner cleans a single document.
// Implementations are safe for concurrent use.
type Cleaner interface {
	// Clean returns the cleaned body text.
	Clean(ctx context.Context) (string, error)

	// CleanWithStats returns the cleaned text with headings, stats and warnings.
	CleanWithStats(ctx context.Context) *Result

	// ExtractHeadings returns the document's headings in document order.
	ExtractHeadings() []Heading

	// Name returns the cleaner name for logging.
	Name() string
}

// New returns the Cleaner for the document's format.
// A nil config uses DefaultConfig().
func New(doc Document, cfg *Config) (Cleaner, error) {
	switch doc.Format {
	case FormatHTML:
		c, err := NewHTML(doc.Content, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case FormatMarkdown:
		c, err := NewMarkdown(doc.Content, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
}

// Select parses the format tag and returns the matching Cleaner.
func Select(format, content string, cfg *Config) (Cleaner, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return New(Document{Format: f, Content: content}, cfg)
}

// base holds what both cleaners share.
type base struct {
	doc Document
	cfg *Config
}

func newBase(format Format, content string, cfg *Config) (base, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.clone()
	}
	if err := cfg.Validate(); err != nil {
		return base{}, err
	}
	doc := Document{Format: format, Content: content}
	if err := doc.validate(cfg.Budget.MaxContentLength); err != nil {
		return base{}, err
	}
	return base{doc: doc, cfg: cfg}, nil
}

// ExtractHeadings returns the document's headings in document order.
func (b *base) ExtractHeadings() []Heading {
	return ExtractHeadings(b.doc, b.cfg)
}

// Document returns the document being cleaned.
func (b *base) Document() Document {
	return b.doc
}

// clean runs strip and the normalizer under the configured budget.
func (b *base) clean(ctx context.Context, strip func(r *runner, in string) string) *Result {
	start := time.Now()
	ctx, cancel := b.cfg.Budget.context(ctx)
	defer cancel()

	result := newResult(len(b.doc.Content))
	headings, simplified := extractHeadings(ctx, b.doc, b.cfg)
	result.Headings = headings
	if simplified > 0 {
		result.AddWarning(PhaseBudget,
			fmt.Sprintf("%d heading(s) simplified after the budget was spent", simplified), "headings")
	}

	r := newRunner(ctx, b.doc.Format, result)
	stripped := strip(r, b.doc.Content)

	norm := b.cfg.normalizer()
	result.Content = r.apply(stage{name: "normalize", fn: func(in string, res *Result) (string, error) {
		return norm.normalize(in, res.Stats), nil
	}}, stripped)

	result.Stats.OutputBytes = len(result.Content)
	result.Stats.TotalDuration = time.Since(start)

	metrics.DocumentsCleaned.WithLabelValues(string(b.doc.Format)).Inc()
	metrics.CleanDuration.WithLabelValues(string(b.doc.Format)).Observe(result.Stats.TotalDuration.Seconds())

	logger.Debug("document cleaned",
		"format", b.doc.Format,
		"input_bytes", result.Stats.InputBytes,
		"output_bytes", result.Stats.OutputBytes,
		"headings", len(result.Headings),
		"partial", result.Partial,
		"duration", result.Stats.TotalDuration)

	return result
}
