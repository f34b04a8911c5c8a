package cleaner

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSafeCut(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		limit int
		want  int
	}{
		{name: "after last closing tag", s: "<p>aaa</p><p>bbbbbbbb</p>", limit: 15, want: 10},
		{name: "after last gt without closing tag", s: "<div><span>abcdefgh", limit: 12, want: 11},
		{name: "before lt when inside a tag", s: "abc<verylongtagname attr>", limit: 8, want: 3},
		{name: "forward to end of leading tag", s: "<verylongtagname attr>tail", limit: 5, want: 22},
		{name: "plain text at rune start", s: "héllo", limit: 2, want: 1},
		{name: "plain text at limit", s: "hello world", limit: 5, want: 5},
		{name: "incomplete closing tag skipped", s: "<b>x</b>yy</spa", limit: 14, want: 8},
		{name: "limit beyond length", s: "<p>x</p>", limit: 100, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := safeCut(tt.s, tt.limit)
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSplitChunks(t *testing.T) {
	doc := buildWrappedDocument(40)

	for _, size := range []int{64, 128, 300, 1000} {
		chunks := splitChunks(doc, size)

		if strings.Join(chunks, "") != doc {
			t.Fatalf("size %d: chunks do not reassemble the document", size)
		}
		for i, chunk := range chunks {
			if chunk == "" {
				t.Fatalf("size %d: chunk %d is empty", size, i)
			}
			if strings.LastIndexByte(chunk, '<') > strings.LastIndexByte(chunk, '>') {
				t.Errorf("size %d: chunk %d ends inside a tag: %q", size, i, chunk[max(0, len(chunk)-40):])
			}
		}
	}
}

func TestSplitChunks_UTF8(t *testing.T) {
	text := strings.Repeat("żółć gęślą jaźń ", 200)
	chunks := splitChunks(text, 97)

	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not reassemble the text")
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d splits a UTF-8 sequence", i)
		}
		if len(chunk) > 97 {
			t.Errorf("chunk %d is %d bytes", i, len(chunk))
		}
	}
}

func TestSplitChunks_Small(t *testing.T) {
	chunks := splitChunks("<p>x</p>", 100)
	if len(chunks) != 1 || chunks[0] != "<p>x</p>" {
		t.Errorf("expected single chunk, got %q", chunks)
	}
}

func TestHTMLCleaner_ChunkedScriptsAndComments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Budget.MaxChunkSize = 64
	cfg.MergeThreshold = 0

	html := "<p>visible paragraph text before</p>" +
		"<script>var t = '<b>x</b>'; " + strings.Repeat("SCRIPTBODY ", 20) + "</script>" +
		"<style>p::after { content: '</i>' } " + strings.Repeat("STYLEBODY ", 20) + "</style>" +
		"<!-- <p>note</p> " + strings.Repeat("COMMENTBODY ", 20) + "-->" +
		strings.Repeat("<p>filler paragraph between the blocks</p>", 8) +
		"<p>visible paragraph text after</p>"

	result := cleanHTML(t, html, cfg)

	if result.Stats.Chunks < 2 {
		t.Fatalf("expected a chunked run, got %d chunk(s)", result.Stats.Chunks)
	}
	for _, s := range []string{"visible paragraph text before", "visible paragraph text after"} {
		if !strings.Contains(result.Content, s) {
			t.Errorf("expected output to contain %q, got %q", s, result.Content)
		}
	}
	for _, s := range []string{"SCRIPTBODY", "var t", "STYLEBODY", "content:", "COMMENTBODY", "note"} {
		if strings.Contains(result.Content, s) {
			t.Errorf("expected output to exclude %q, got %q", s, result.Content)
		}
	}
}
