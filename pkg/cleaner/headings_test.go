package cleaner

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestExtractHeadings_HTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []Heading
	}{
		{
			name: "title in full document",
			html: "<html><head><script>x</script></head><body><h1>Title</h1><p>Some long paragraph text that exceeds fifty characters easily here.</p></body></html>",
			want: []Heading{{Level: 1, Text: "Title"}},
		},
		{
			name: "document order preserved",
			html: `<h2>Second level</h2><p>x</p><h1 class="big">Top <em>level</em></h1><H3>  spaced
			   out </H3>`,
			want: []Heading{{Level: 2, Text: "Second level"}, {Level: 1, Text: "Top level"}, {Level: 3, Text: "spaced out"}},
		},
		{
			name: "mismatched levels skipped",
			html: `<h2>Bad</h3><h1>Good</h1>`,
			want: []Heading{{Level: 1, Text: "Good"}},
		},
		{
			name: "commented headings ignored",
			html: `<!-- <h1>Old</h1> --><script>document.write("<h2>Fake</h2>")</script><h1>New</h1>`,
			want: []Heading{{Level: 1, Text: "New"}},
		},
		{
			name: "entities decoded",
			html: `<h1>Q&amp;A&nbsp;session</h1>`,
			want: []Heading{{Level: 1, Text: "Q&A session"}},
		},
		{
			name: "empty headings dropped",
			html: `<h1> <img src="x.png"> </h1><h2>Kept</h2>`,
			want: []Heading{{Level: 2, Text: "Kept"}},
		},
		{
			name: "duplicates kept",
			html: `<h2>Same</h2><h2>Same</h2>`,
			want: []Heading{{Level: 2, Text: "Same"}, {Level: 2, Text: "Same"}},
		},
		{
			name: "no headings",
			html: `<p>Nothing here</p>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHeadings(Document{Format: FormatHTML, Content: tt.html}, nil)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExtractHeadings_Markdown(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want []Heading
	}{
		{
			name: "single heading",
			md:   "# Heading\n\nShort.\n\nThis is a reasonably long line.",
			want: []Heading{{Level: 1, Text: "Heading"}},
		},
		{
			name: "levels closing hashes and inline syntax",
			md:   "# One\ntext\n## Two ##\n### **Bold** [link](https://x.io)\n###### Six",
			want: []Heading{
				{Level: 1, Text: "One"},
				{Level: 2, Text: "Two"},
				{Level: 3, Text: "Bold link"},
				{Level: 6, Text: "Six"},
			},
		},
		{
			name: "fenced code is not a heading",
			md:   "```bash\n# install deps\n```\n# Real",
			want: []Heading{{Level: 1, Text: "Real"}},
		},
		{
			name: "marker without space ignored",
			md:   "#NoSpace\n####### Seven\n## C#",
			want: []Heading{{Level: 2, Text: "C#"}},
		},
		{
			name: "only closing hashes dropped",
			md:   "## ###\n## Kept",
			want: []Heading{{Level: 2, Text: "Kept"}},
		},
		{
			name: "duplicates kept",
			md:   "## FAQ\nbody\n## FAQ",
			want: []Heading{{Level: 2, Text: "FAQ"}, {Level: 2, Text: "FAQ"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHeadings(Document{Format: FormatMarkdown, Content: tt.md}, nil)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestExtractHeadings_DoesNotModifyDocument(t *testing.T) {
	const content = "<!-- c --><h1>Title</h1><script>x</script>"
	doc := Document{Format: FormatHTML, Content: content}
	_ = ExtractHeadings(doc, nil)
	if doc.Content != content {
		t.Errorf("document modified: %q", doc.Content)
	}
}

func TestHeading_Tag(t *testing.T) {
	for level := 1; level <= 6; level++ {
		h := Heading{Level: level}
		want := "h" + string(rune('0'+level))
		if h.Tag() != want {
			t.Errorf("expected %q, got %q", want, h.Tag())
		}
	}
}

func TestHeading_JSON(t *testing.T) {
	data, err := json.Marshal(Heading{Level: 2, Text: "Pricing"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"tag":"h2","level":2,"text":"Pricing"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var fromTag Heading
	if err := json.Unmarshal([]byte(`{"tag":"h3","text":"Plans"}`), &fromTag); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fromTag != (Heading{Level: 3, Text: "Plans"}) {
		t.Errorf("unexpected heading %+v", fromTag)
	}

	var bad Heading
	if err := json.Unmarshal([]byte(`{"tag":"p","text":"x"}`), &bad); err == nil {
		t.Error("expected error for invalid tag")
	}
}

func TestHeading_YAML(t *testing.T) {
	data, err := yaml.Marshal(Heading{Level: 1, Text: "Intro"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "tag: h1\nlevel: 1\ntext: Intro\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, data)
	}
}

func TestMarkdownCleaner_HeadingsWithinBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := NewMarkdown("# **Bold** title\n\n## [Linked](https://x.io) `code` two\n\nbody", nil)
	if err != nil {
		t.Fatalf("NewMarkdown: %v", err)
	}
	result := c.CleanWithStats(ctx)

	want := []Heading{{Level: 1, Text: "Bold title"}, {Level: 2, Text: "Linked code two"}}
	if !reflect.DeepEqual(result.Headings, want) {
		t.Errorf("expected %+v, got %+v", want, result.Headings)
	}

	found := false
	for _, w := range result.Warnings {
		if w.Context == "headings" && w.Phase == PhaseBudget {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a headings budget warning, got %v", result.Warnings)
	}
}

func TestExtractHeadings_MarkdownFullPipelineWithinBudget(t *testing.T) {
	headings, simplified := extractHeadings(context.Background(),
		Document{Format: FormatMarkdown, Content: "# One\n## Two"}, DefaultConfig())

	if simplified != 0 {
		t.Errorf("expected no simplified headings, got %d", simplified)
	}
	if len(headings) != 2 {
		t.Errorf("expected 2 headings, got %+v", headings)
	}
}
