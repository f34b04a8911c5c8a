package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TextWriter renders items for humans, separating items with a blank line.
type TextWriter struct {
	w       *bufio.Writer
	written int
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write renders the item using Texter, fmt.Stringer or %v, in that order.
func (w *TextWriter) Write(item any) error {
	var text string
	switch v := item.(type) {
	case Texter:
		text = v.Text()
	case fmt.Stringer:
		text = v.String()
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		text = fmt.Sprintf("%v", v)
	}

	if w.written > 0 {
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	w.written++

	if _, err := w.w.WriteString(text); err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *TextWriter) Close() error {
	return w.w.Flush()
}
