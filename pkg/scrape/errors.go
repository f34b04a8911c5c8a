package scrape

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransient marks failures worth retrying: network errors and
	// 429/500/502/503/504 responses.
	ErrTransient = errors.New("transient upstream error")

	// ErrEmptyQuery is returned by Search when the keyword is blank.
	ErrEmptyQuery = errors.New("search keyword is empty")

	// ErrInvalidBaseURL is returned by New for a missing or non-HTTP base URL.
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

const maxErrorBody = 256

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
	}
	return fmt.Sprintf("HTTP %d for %s: %s", e.Code, e.URL, e.Body)
}

// Unwrap returns ErrTransient for retryable status codes.
func (e *StatusError) Unwrap() error {
	if retryableStatus(e.Code) {
		return ErrTransient
	}
	return nil
}

func newStatusError(code int, url string, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Code: code, URL: url, Body: string(body)}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
