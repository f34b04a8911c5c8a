package cleaner

import (
	"errors"
	"fmt"
)

// Error types surfaced to callers. Check with errors.Is.
var (
	// ErrInvalidInput indicates empty content or content above the configured
	// maximum length. It is raised before any processing begins.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat indicates a format tag other than html or markdown.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidConfig indicates a Config that failed validation.
	ErrInvalidConfig = errors.New("invalid cleaner config")
)

// InputError provides details about rejected input.
// Use errors.As to check for this error type.
type InputError struct {
	Reason string
	Size   int
	Limit  int
}

func (e *InputError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("invalid input: %s (size %d, limit %d)", e.Reason, e.Size, e.Limit)
	}
	return "invalid input: " + e.Reason
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}
