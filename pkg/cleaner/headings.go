package cleaner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Heading is an h1-h6 element or an ATX Markdown heading.
type Heading struct {
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Tag returns the HTML tag name for the heading level, e.g. "h2".
func (h Heading) Tag() string {
	return "h" + strconv.Itoa(h.Level)
}

type headingJSON struct {
	Tag   string `json:"tag"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// MarshalJSON encodes the heading as {"tag","level","text"}.
func (h Heading) MarshalJSON() ([]byte, error) {
	return json.Marshal(headingJSON{Tag: h.Tag(), Level: h.Level, Text: h.Text})
}

// UnmarshalJSON accepts either a level or a tag.
func (h *Heading) UnmarshalJSON(data []byte) error {
	var v headingJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	level := v.Level
	if level == 0 && len(v.Tag) == 2 && (v.Tag[0] == 'h' || v.Tag[0] == 'H') {
		level = int(v.Tag[1] - '0')
	}
	if level < 1 || level > 6 {
		return fmt.Errorf("invalid heading level %d (tag %q)", level, v.Tag)
	}
	h.Level = level
	h.Text = v.Text
	return nil
}

// MarshalYAML adds the tag name alongside level and text.
func (h Heading) MarshalYAML() (any, error) {
	return headingJSON{Tag: h.Tag(), Level: h.Level, Text: h.Text}, nil
}

var (
	htmlHeadingRe   = regexp.MustCompile(`(?is)<h([1-6])\b[^>]*>(.*?)</h([1-6])\s*>`)
	mdHeadingRe     = regexp.MustCompile(`(?m)^ {0,3}(#{1,6}) (.+)$`)
	mdClosingHashRe = regexp.MustCompile(`(?:^|\s+)#+\s*$`)
	backtickFenceRe = regexp.MustCompile("(?s)```.*?```")
	tildeFenceRe    = regexp.MustCompile(`(?s)~~~.*?~~~`)
	anyTagRe        = regexp.MustCompile(`<[^>]*>`)
	nbspReplacer    = strings.NewReplacer("\u00a0", " ")
)

// ExtractHeadings returns the headings of doc in document order.
// Duplicates are kept; headings whose text is empty after cleanup are not.
// The work is bounded by the config's processing budget.
// A nil config uses DefaultConfig().
func ExtractHeadings(doc Document, cfg *Config) []Heading {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := cfg.Budget.context(context.Background())
	defer cancel()
	headings, _ := extractHeadings(ctx, doc, cfg)
	return headings
}

// extractHeadings also reports how many Markdown headings were simplified
// without the full pipeline because ctx was done.
func extractHeadings(ctx context.Context, doc Document, cfg *Config) ([]Heading, int) {
	switch doc.Format {
	case FormatHTML:
		return extractHTMLHeadings(doc.Content, cfg), 0
	case FormatMarkdown:
		return extractMarkdownHeadings(ctx, doc.Content, cfg)
	default:
		return nil, 0
	}
}

func extractHTMLHeadings(content string, cfg *Config) []Heading {
	masked := commentRe.ReplaceAllString(content, "")
	for _, rule := range scriptStyleRules {
		masked = rule.remove(masked)
	}

	var headings []Heading
	for _, m := range htmlHeadingRe.FindAllStringSubmatch(masked, -1) {
		if m[1] != m[3] {
			continue
		}
		text := anyTagRe.ReplaceAllString(m[2], "")
		text = nbspReplacer.Replace(html.UnescapeString(text))
		text = strings.Join(strings.Fields(text), " ")
		if cfg.NormalizeUnicode {
			text = norm.NFC.String(text)
		}
		if text == "" {
			continue
		}
		level, _ := strconv.Atoi(m[1])
		headings = append(headings, Heading{Level: level, Text: text})
	}
	return headings
}

func extractMarkdownHeadings(ctx context.Context, content string, cfg *Config) ([]Heading, int) {
	masked := backtickFenceRe.ReplaceAllString(content, "")
	masked = tildeFenceRe.ReplaceAllString(masked, "")

	textCfg := cfg.clone()
	textCfg.LinkPolicy = LinkKeepText
	textCfg.KeepHeadingText = true
	normalizer := Normalizer{NormalizeUnicode: cfg.NormalizeUnicode}

	var headings []Heading
	simplified := 0
	for _, m := range mdHeadingRe.FindAllStringSubmatch(masked, -1) {
		raw := mdClosingHashRe.ReplaceAllString(strings.TrimSpace(m[2]), "")
		if raw == "" {
			continue
		}

		var text string
		if ctx.Err() == nil {
			r := newRunner(ctx, FormatMarkdown, newResult(len(raw)))
			text = normalizer.Normalize(stripMarkdown(r, raw, textCfg))
		} else {
			text = simplifyHeading(raw, cfg)
			simplified++
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		headings = append(headings, Heading{Level: len(m[1]), Text: text})
	}
	return headings, simplified
}

// simplifyHeading is the single-pass cleanup used once the budget is spent.
func simplifyHeading(raw string, cfg *Config) string {
	text := mdImageRe.ReplaceAllString(raw, "")
	text = mdLinkRe.ReplaceAllString(text, "${1}")
	text = mdAnyTagRe.ReplaceAllString(text, "")
	text = stripMarkdownSyntax(nbspReplacer.Replace(html.UnescapeString(text)))
	text = strings.Map(dropControl, text)
	if cfg.NormalizeUnicode {
		text = norm.NFC.String(text)
	}
	return text
}
