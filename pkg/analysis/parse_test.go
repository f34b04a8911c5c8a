package analysis

import (
	"errors"
	"strings"
	"testing"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantErr bool
	}{
		{name: "object", input: `{"a": 1}`, wantKey: "a"},
		{name: "json fence", input: "```json\n{\"a\": 1}\n```", wantKey: "a"},
		{name: "bare fence", input: "```\n{\"a\": 1}\n```", wantKey: "a"},
		{name: "fence without newline", input: "```{\"a\": 1}```", wantKey: "a"},
		{name: "text before fence", input: "Sure!\n```json\n{\"a\": 1}\n```\nDone.", wantKey: "a"},
		{name: "prose around object", input: "Result: {\"a\": {\"b\": 2}} end", wantKey: "a"},
		{name: "empty", input: "", wantErr: true},
		{name: "array", input: `[1, 2]`, wantErr: true},
		{name: "truncated object", input: `{"a": [1, 2`, wantErr: true},
		{name: "broken object", input: `{"a": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ParseJSON(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidJSON) {
					t.Fatalf("expected ErrInvalidJSON, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseJSON() error = %v", err)
			}
			if _, ok := data[tt.wantKey]; !ok {
				t.Errorf("expected key %q in %v", tt.wantKey, data)
			}
		})
	}
}

func TestParseJSON_ErrorTruncatesResponse(t *testing.T) {
	_, err := ParseJSON(strings.Repeat("x", 500))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 300 {
		t.Errorf("expected truncated response in error, got %d bytes", len(err.Error()))
	}
}

func TestTruncateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		limit   int
		want    string
	}{
		{name: "under limit", content: "short", limit: 10, want: "short"},
		{name: "no limit", content: "short", limit: 0, want: "short"},
		{name: "ascii", content: "abcdefghij", limit: 4, want: "abcd" + truncationNote},
		{name: "rune boundary", content: "aé日本", limit: 4, want: "aé" + truncationNote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateContent("u", tt.content, tt.limit); got != tt.want {
				t.Errorf("truncateContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"de", "German"},
		{"EN", "English"},
		{"fr", "French"},
		{"pt-BR", "Brazilian Portuguese"},
		{"", "English"},
		{"not a tag", "English"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := LanguageName(tt.code); got != tt.want {
				t.Errorf("LanguageName(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"de":      "de",
		"pt-br":   "pt-BR",
		"":        DefaultLanguage,
		"???":     DefaultLanguage,
		" en-GB ": "en-GB",
	}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
