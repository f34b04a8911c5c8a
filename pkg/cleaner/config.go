package cleaner

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// LinkPolicy controls what happens to Markdown links [text](url).
type LinkPolicy string

const (
	// LinkKeepText keeps the link label and drops the URL.
	LinkKeepText LinkPolicy = "keep_text"
	// LinkDrop removes the whole link, label included.
	LinkDrop LinkPolicy = "drop"
)

// Budget bounds the work done on oversized or adversarial input.
type Budget struct {
	// MaxProcessingTime is the wall-clock budget for stripping. Once spent,
	// remaining removal stages are skipped and a partial result is returned.
	// Zero disables the budget.
	MaxProcessingTime time.Duration `json:"max_processing_time" yaml:"max_processing_time" validate:"gte=0"`

	// MaxChunkSize is the chunk size used for documents larger than twice its value.
	MaxChunkSize int `json:"max_chunk_size" yaml:"max_chunk_size" validate:"gt=0"`

	// MaxContentLength is the largest accepted document, in bytes.
	MaxContentLength int `json:"max_content_length" yaml:"max_content_length" validate:"gt=0"`

	// FallbackThreshold is the stripped size above which only paragraph,
	// heading and list elements are kept. Zero disables the fallback.
	FallbackThreshold int `json:"fallback_threshold" yaml:"fallback_threshold" validate:"gte=0"`
}

// context derives the budgeted context for a single cleaning run.
func (b Budget) context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if b.MaxProcessingTime > 0 {
		return context.WithTimeout(parent, b.MaxProcessingTime)
	}
	return context.WithCancel(parent)
}

// Config defines all configuration options for the cleaners.
type Config struct {
	// === Budget ===

	Budget Budget `json:"budget" yaml:"budget"`

	// === Normalizer ===

	// MinLineLength drops lines shorter than this many characters.
	// Zero keeps every non-empty line.
	MinLineLength int `json:"min_line_length" yaml:"min_line_length" validate:"gte=0"`

	// MergeThreshold merges lines shorter than this many characters with
	// the following line. Zero disables merging.
	MergeThreshold int `json:"merge_threshold" yaml:"merge_threshold" validate:"gte=0"`

	// NormalizeUnicode applies NFC normalization to every output line.
	NormalizeUnicode bool `json:"normalize_unicode" yaml:"normalize_unicode"`

	// === Markup ===

	// LinkPolicy selects how Markdown links are simplified.
	LinkPolicy LinkPolicy `json:"link_policy" yaml:"link_policy" validate:"oneof=keep_text drop"`

	// StripForms removes forms and all form controls with their content.
	StripForms bool `json:"strip_forms" yaml:"strip_forms"`

	// RemoveBoilerplate removes containers whose class or id matches
	// BoilerplatePatterns.
	RemoveBoilerplate bool `json:"remove_boilerplate" yaml:"remove_boilerplate"`

	// BoilerplatePatterns are class/id words identifying boilerplate.
	BoilerplatePatterns []string `json:"boilerplate_patterns" yaml:"boilerplate_patterns" validate:"dive,required,alphanum"`

	// KeepHeadingText leaves heading text in the cleaned body. By default
	// headings are reported by ExtractHeadings only.
	KeepHeadingText bool `json:"keep_heading_text" yaml:"keep_heading_text"`

	// EmptyElementPasses bounds the passes removing newly-empty elements.
	EmptyElementPasses int `json:"empty_element_passes" yaml:"empty_element_passes" validate:"gte=0,lte=10"`
}

// DefaultBoilerplatePatterns are the class/id words removed by default.
var DefaultBoilerplatePatterns = []string{
	"menu", "sidebar", "footer", "header", "navigation", "nav",
	"cookie", "popup", "banner", "ad",
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Budget: Budget{
			MaxProcessingTime: 10 * time.Second,
			MaxChunkSize:      512 * 1024,
			MaxContentLength:  10 * 1024 * 1024,
			FallbackThreshold: 1024 * 1024,
		},
		MinLineLength:       0,
		MergeThreshold:      500,
		NormalizeUnicode:    true,
		LinkPolicy:          LinkKeepText,
		StripForms:          false,
		RemoveBoilerplate:   true,
		BoilerplatePatterns: slices.Clone(DefaultBoilerplatePatterns),
		KeepHeadingText:     false,
		EmptyElementPasses:  3,
	}
}

// PresetStrict removes forms, drops links entirely and keeps only lines of
// at least 50 characters.
func PresetStrict() *Config {
	cfg := DefaultConfig()
	cfg.StripForms = true
	cfg.LinkPolicy = LinkDrop
	cfg.MinLineLength = 50
	return cfg
}

// PresetLenient keeps heading text and boilerplate containers in the body
// and disables line merging.
func PresetLenient() *Config {
	cfg := DefaultConfig()
	cfg.RemoveBoilerplate = false
	cfg.KeepHeadingText = true
	cfg.MergeThreshold = 0
	return cfg
}

// Preset returns a named preset: default, strict or lenient.
func Preset(name string) (*Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "strict":
		return PresetStrict(), nil
	case "lenient":
		return PresetLenient(), nil
	default:
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Merge merges another config into this one.
// Non-zero values from other override this config; booleans can only be
// switched on. Boilerplate patterns are appended, not replaced.
func (c *Config) Merge(other *Config) *Config {
	merged := c.clone()
	if other == nil {
		return merged
	}

	if other.Budget.MaxProcessingTime > 0 {
		merged.Budget.MaxProcessingTime = other.Budget.MaxProcessingTime
	}
	if other.Budget.MaxChunkSize > 0 {
		merged.Budget.MaxChunkSize = other.Budget.MaxChunkSize
	}
	if other.Budget.MaxContentLength > 0 {
		merged.Budget.MaxContentLength = other.Budget.MaxContentLength
	}
	if other.Budget.FallbackThreshold > 0 {
		merged.Budget.FallbackThreshold = other.Budget.FallbackThreshold
	}

	if other.MinLineLength > 0 {
		merged.MinLineLength = other.MinLineLength
	}
	if other.MergeThreshold > 0 {
		merged.MergeThreshold = other.MergeThreshold
	}
	if other.LinkPolicy != "" {
		merged.LinkPolicy = other.LinkPolicy
	}
	if other.EmptyElementPasses > 0 {
		merged.EmptyElementPasses = other.EmptyElementPasses
	}

	if other.NormalizeUnicode {
		merged.NormalizeUnicode = true
	}
	if other.StripForms {
		merged.StripForms = true
	}
	if other.RemoveBoilerplate {
		merged.RemoveBoilerplate = true
	}
	if other.KeepHeadingText {
		merged.KeepHeadingText = true
	}

	for _, p := range other.BoilerplatePatterns {
		if !slices.Contains(merged.BoilerplatePatterns, p) {
			merged.BoilerplatePatterns = append(merged.BoilerplatePatterns, p)
		}
	}

	return merged
}

// clone returns a deep copy so cleaners never share slices with callers.
func (c *Config) clone() *Config {
	cp := *c
	cp.BoilerplatePatterns = slices.Clone(c.BoilerplatePatterns)
	return &cp
}

// normalizer returns the shared final stage configured from c.
func (c *Config) normalizer() Normalizer {
	return Normalizer{
		MinLineLength:    c.MinLineLength,
		MergeThreshold:   c.MergeThreshold,
		NormalizeUnicode: c.NormalizeUnicode,
	}
}
