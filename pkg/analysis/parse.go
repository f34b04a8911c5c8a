package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON extracts a JSON object from a model response. Code fences and
// prose around the object are ignored.
func ParseJSON(s string) (map[string]any, error) {
	body := extractObject(stripCodeFence(s))
	if body == "" {
		return nil, fmt.Errorf("%w (response: %s)", ErrInvalidJSON, truncateForError(s))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, fmt.Errorf("%w: %v (response: %s)", ErrInvalidJSON, err, truncateForError(s))
	}
	return data, nil
}

// stripCodeFence returns the body of the first ``` fence, or s trimmed when
// there is none.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	rest := s[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractObject returns the span from the first '{' to the last '}'.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
