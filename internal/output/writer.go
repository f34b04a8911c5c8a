// Package output renders cleaning results, search results and analysis
// reports for the command line.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
)

// Formats lists every supported format in flag help order.
var Formats = []Format{FormatText, FormatJSON, FormatJSONL, FormatYAML}

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %q", s)
}

// Writer serializes items to an underlying stream. Items may be buffered
// until Close.
type Writer interface {
	Write(item any) error
	Close() error
}

// Texter is implemented by items with a human readable rendering.
type Texter interface {
	Text() string
}

// Option configures a writer.
type Option func(*writerConfig)

type writerConfig struct {
	pretty     bool
	indent     string
	escapeHTML bool
}

// WithPretty enables indented JSON.
func WithPretty(enabled bool) Option {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the JSON indentation string.
func WithIndent(indent string) Option {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithEscapeHTML escapes <, > and & inside JSON strings.
func WithEscapeHTML(enabled bool) Option {
	return func(c *writerConfig) {
		c.escapeHTML = enabled
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...Option) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(w, append([]Option{WithPretty(true)}, opts...)...), nil
	case FormatJSONL:
		return NewJSONLWriter(w, opts...), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatText:
		return NewTextWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q", format)
	}
}

// WriteAll writes every item and closes the writer.
func WriteAll(w Writer, items ...any) error {
	for _, item := range items {
		if err := w.Write(item); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
