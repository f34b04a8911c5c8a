package cleaner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// tagRule removes one element type. Elements with content are removed
// whole; a leftover open, self-closing or closing tag is removed alone
// when stray is set.
type tagRule struct {
	name    string
	element *regexp.Regexp // nil for void elements
	stray   *regexp.Regexp
}

func newTagRule(name string, void bool) tagRule {
	rule := tagRule{
		name:  name,
		stray: regexp.MustCompile(`(?i)</?` + name + `\b[^>]*>`),
	}
	if !void {
		rule.element = regexp.MustCompile(`(?is)<` + name + `\b[^>]*>.*?</` + name + `\s*>`)
	}
	return rule
}

// removeCount returns s without the element and the number of removals.
func (t tagRule) removeCount(s string) (string, int) {
	n := 0
	drop := func(string) string {
		n++
		return ""
	}
	if t.element != nil {
		s = t.element.ReplaceAllStringFunc(s, drop)
	}
	if t.stray != nil {
		s = t.stray.ReplaceAllStringFunc(s, drop)
	}
	return s, n
}

func (t tagRule) remove(s string) string {
	out, _ := t.removeCount(s)
	return out
}

func newTagRules(void map[string]bool, names ...string) []tagRule {
	rules := make([]tagRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, newTagRule(name, void[name]))
	}
	return rules
}

var voidElements = map[string]bool{"img": true, "source": true, "embed": true, "input": true}

var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

	scriptStyleRules = newTagRules(nil, "script", "style")

	nonContentRules = newTagRules(voidElements,
		"head", "img", "svg", "path", "symbol", "picture", "source", "video",
		"audio", "iframe", "canvas", "noscript", "object", "embed")

	formRules = newTagRules(voidElements,
		"form", "input", "select", "option", "textarea", "button", "fieldset", "datalist")

	headingRules = newTagRules(nil, "h1", "h2", "h3", "h4", "h5", "h6")

	attributesRe = regexp.MustCompile(`(?i)<([a-z][a-z0-9-]*)(?:\s[^>]*?)?(/?)>`)
	emptyPairRe  = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)>\s*</([a-zA-Z][a-zA-Z0-9]*)\s*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	blockTagRe = regexp.MustCompile(`(?i)</?(?:p|div|li|ul|ol|dl|dt|dd|tr|table|thead|tbody|tfoot|` +
		`section|article|main|aside|nav|header|footer|blockquote|pre|figure|figcaption|` +
		`h[1-6]|form|fieldset|address|details|summary|br|hr)\b[^>]*>`)
	cellCloseRe      = regexp.MustCompile(`(?i)</t[dh]\s*>`)
	horizontalWSRe   = regexp.MustCompile(`[ \t\f\v\r]+`)
	newlineSpacingRe = regexp.MustCompile(` ?\n ?`)
)

// HTMLCleaner cleans HTML documents.
type HTMLCleaner struct {
	base
}

// NewHTML creates a cleaner for an HTML document.
// A nil config uses DefaultConfig().
func NewHTML(content string, cfg *Config) (*HTMLCleaner, error) {
	b, err := newBase(FormatHTML, content, cfg)
	if err != nil {
		return nil, err
	}
	return &HTMLCleaner{base: b}, nil
}

// Name returns the cleaner name for logging.
func (c *HTMLCleaner) Name() string {
	return "html"
}

// Clean returns the cleaned body text.
func (c *HTMLCleaner) Clean(ctx context.Context) (string, error) {
	return c.CleanWithStats(ctx).Content, nil
}

// CleanWithStats performs cleaning and returns detailed stats.
func (c *HTMLCleaner) CleanWithStats(ctx context.Context) *Result {
	return c.clean(ctx, func(r *runner, in string) string {
		return r.apply(flattenStage, stripHTML(r, in, c.cfg))
	})
}

var flattenStage = stage{name: "flatten", fn: func(in string, _ *Result) (string, error) {
	return flattenHTML(in), nil
}}

// stripHTML removes non-content markup and returns what is left, tags and
// entities included. Comments, scripts and styles go first, on the whole
// document, so no chunk boundary can fall inside one.
func stripHTML(r *runner, in string, cfg *Config) string {
	markup := r.run(in, htmlScriptStages()...)
	var text string
	if cfg.Budget.MaxChunkSize > 0 && len(markup) > 2*cfg.Budget.MaxChunkSize {
		text = stripChunked(r, markup, cfg)
	} else {
		r.result.Stats.Chunks = 1
		text = r.run(markup, htmlMarkupStages(cfg, true)...)
	}
	return r.run(text, htmlTextStages(cfg)...)
}

// htmlScriptStages remove comments, scripts and styles. They are linear and
// never skipped for budget.
func htmlScriptStages() []stage {
	return []stage{
		{name: "comments", fn: func(in string, res *Result) (string, error) {
			n := 0
			out := commentRe.ReplaceAllStringFunc(in, func(string) string {
				n++
				return ""
			})
			res.Stats.RecordRemoval("comment", n)
			return out, nil
		}},
		{name: "scripts", fn: func(in string, res *Result) (string, error) {
			return removeRules(in, scriptStyleRules, res), nil
		}},
	}
}

// htmlMarkupStages remove non-content elements and attributes. They are
// safe to run on a chunk of a document. The DOM boilerplate pass needs the
// whole document and runs only when whole is set.
func htmlMarkupStages(cfg *Config, whole bool) []stage {
	var stages []stage

	rules := nonContentRules
	if cfg.StripForms {
		rules = append(rules[:len(rules):len(rules)], formRules...)
	}
	for _, rule := range rules {
		stages = append(stages, stage{name: "remove-" + rule.name, budgeted: true, fn: func(in string, res *Result) (string, error) {
			out, n := rule.removeCount(in)
			res.Stats.RecordRemoval(rule.name, n)
			return out, nil
		}})
	}

	if !cfg.KeepHeadingText {
		stages = append(stages, stage{name: "headings", budgeted: true, fn: func(in string, res *Result) (string, error) {
			return removeRules(in, headingRules, res), nil
		}})
	}

	if whole && cfg.RemoveBoilerplate && len(cfg.BoilerplatePatterns) > 0 {
		patterns := cfg.BoilerplatePatterns
		stages = append(stages, stage{name: "boilerplate", budgeted: true, fn: func(in string, res *Result) (string, error) {
			return removeBoilerplateDOM(in, patterns, res)
		}})
	}

	stages = append(stages, stage{name: "attributes", budgeted: true, fn: func(in string, _ *Result) (string, error) {
		return attributesRe.ReplaceAllString(in, "<${1}${2}>"), nil
	}})

	return stages
}

// htmlTextStages run once on the whole (possibly reassembled) document.
// Flattening to text is left to the caller.
func htmlTextStages(cfg *Config) []stage {
	stages := []stage{
		{name: "empty-elements", budgeted: true, fn: func(in string, res *Result) (string, error) {
			return removeEmptyPairs(in, cfg.EmptyElementPasses, res), nil
		}},
		{name: "whitespace", fn: func(in string, _ *Result) (string, error) {
			return strings.TrimSpace(whitespaceRe.ReplaceAllString(in, " ")), nil
		}},
	}
	if threshold := cfg.Budget.FallbackThreshold; threshold > 0 {
		stages = append(stages, stage{name: "fallback", budgeted: true, fn: func(in string, res *Result) (string, error) {
			if len(in) <= threshold {
				return in, nil
			}
			return keepTextElements(in, threshold, res)
		}})
	}
	return stages
}

func removeRules(in string, rules []tagRule, res *Result) string {
	for _, rule := range rules {
		var n int
		in, n = rule.removeCount(in)
		res.Stats.RecordRemoval(rule.name, n)
	}
	return in
}

// removeEmptyPairs removes <tag></tag> pairs with only whitespace between
// them, repeating while a pass removes something, up to passes times.
func removeEmptyPairs(in string, passes int, res *Result) string {
	for range passes {
		n := 0
		in = emptyPairRe.ReplaceAllStringFunc(in, func(m string) string {
			sub := emptyPairRe.FindStringSubmatch(m)
			if !strings.EqualFold(sub[1], sub[2]) {
				return m
			}
			n++
			return ""
		})
		res.Stats.RecordRemoval("empty", n)
		if n == 0 {
			break
		}
	}
	return in
}

// flattenHTML turns block boundaries into newlines, drops the remaining
// tags and decodes entities.
func flattenHTML(in string) string {
	out := cellCloseRe.ReplaceAllString(in, " ")
	out = blockTagRe.ReplaceAllString(out, "\n")
	out = anyTagRe.ReplaceAllString(out, "")
	out = nbspReplacer.Replace(html.UnescapeString(out))
	out = horizontalWSRe.ReplaceAllString(out, " ")
	out = newlineSpacingRe.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

// StripHTML removes non-content elements, attributes and empty elements
// from s. Tags and entities of the remaining content are kept, so running it
// on its own output changes nothing. A nil config uses DefaultConfig().
func StripHTML(ctx context.Context, s string, cfg *Config) (string, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("strip html: %w", err)
	}
	ctx, cancel := cfg.Budget.context(ctx)
	defer cancel()
	return stripHTML(newRunner(ctx, FormatHTML, newResult(len(s))), s, cfg), nil
}
