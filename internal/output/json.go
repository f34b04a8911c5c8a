package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter buffers items and writes them on Close: a single item as an
// object, anything else as an array.
type JSONWriter struct {
	w     *bufio.Writer
	cfg   writerConfig
	items []any
}

// NewJSONWriter creates a JSON writer. Output is compact unless WithPretty
// is given.
func NewJSONWriter(w io.Writer, opts ...Option) *JSONWriter {
	jw := &JSONWriter{w: bufio.NewWriter(w), items: make([]any, 0)}
	for _, opt := range opts {
		opt(&jw.cfg)
	}
	if jw.cfg.pretty && jw.cfg.indent == "" {
		jw.cfg.indent = "  "
	}
	return jw
}

// Write buffers a single item.
func (w *JSONWriter) Write(item any) error {
	w.items = append(w.items, item)
	return nil
}

// Close encodes the buffered items and flushes.
func (w *JSONWriter) Close() error {
	var payload any = w.items
	if len(w.items) == 1 {
		payload = w.items[0]
	}
	w.items = w.items[:0]

	if err := newEncoder(w.w, w.cfg).Encode(payload); err != nil {
		return err
	}
	return w.w.Flush()
}

// JSONLWriter writes one compact JSON document per line as items arrive.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer. Only WithEscapeHTML applies.
func NewJSONLWriter(w io.Writer, opts ...Option) *JSONLWriter {
	var cfg writerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: newEncoder(bw, writerConfig{escapeHTML: cfg.escapeHTML})}
}

// Write encodes the item as one line and flushes it.
func (w *JSONLWriter) Write(item any) error {
	if err := w.enc.Encode(item); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.w.Flush()
}

func newEncoder(w io.Writer, cfg writerConfig) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(cfg.escapeHTML)
	if cfg.pretty {
		enc.SetIndent("", cfg.indent)
	}
	return enc
}
