package cleaner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	mdHeadingLineRe = regexp.MustCompile(`(?m)^ {0,3}#{1,6}(?: .*)?$`)

	mdNoiseRules = newTagRules(nil, "head", "script", "style", "nav", "footer", "header", "aside")
	mdSVGRule    = newTagRule("svg", false)

	mdBlockTagRe   = regexp.MustCompile(`(?i)</?(?:p|div|span|section|article)\b[^>]*>`)
	mdBreakRe      = regexp.MustCompile(`(?i)<br\b[^>]*>`)
	mdRuleRe       = regexp.MustCompile(`(?i)<hr\b[^>]*>`)
	mdHeadingTagRe = regexp.MustCompile(`(?is)<h([1-6])\b[^>]*>(.*?)</h[1-6]\s*>`)
	mdAnyTagRe     = regexp.MustCompile(`<[!/]?[a-zA-Z][^>]*>`)

	mdImageRe        = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLinkRe         = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdInlineCodeRe   = regexp.MustCompile("`([^`\n]+)`")
	mdHeadingMarkRe  = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	mdBoldStarRe     = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	mdBoldUnderRe    = regexp.MustCompile(`(^|\W)__([^_\n]+)__`)
	mdItalicStarRe   = regexp.MustCompile(`\*([^*\n]+)\*`)
	mdItalicUnderRe  = regexp.MustCompile(`(^|\W)_([^_\n]+)_`)
	mdHorizontalWSRe = regexp.MustCompile(`[ \t\f\v\r]+`)
	mdLineEdgeRe     = regexp.MustCompile(`(?m)^ | $`)
	mdBlankRunRe     = regexp.MustCompile(`\n{3,}`)
)

// MarkdownCleaner cleans Markdown documents, including Markdown with
// embedded HTML.
type MarkdownCleaner struct {
	base
}

// NewMarkdown creates a cleaner for a Markdown document.
// A nil config uses DefaultConfig().
func NewMarkdown(content string, cfg *Config) (*MarkdownCleaner, error) {
	b, err := newBase(FormatMarkdown, content, cfg)
	if err != nil {
		return nil, err
	}
	return &MarkdownCleaner{base: b}, nil
}

// Name returns the cleaner name for logging.
func (c *MarkdownCleaner) Name() string {
	return "markdown"
}

// Clean returns the cleaned body text.
func (c *MarkdownCleaner) Clean(ctx context.Context) (string, error) {
	return c.CleanWithStats(ctx).Content, nil
}

// CleanWithStats performs cleaning and returns detailed stats.
func (c *MarkdownCleaner) CleanWithStats(ctx context.Context) *Result {
	return c.clean(ctx, func(r *runner, in string) string {
		r.result.Stats.Chunks = 1
		return stripMarkdown(r, in, c.cfg)
	})
}

// stripMarkdown removes embedded HTML and Markdown syntax.
func stripMarkdown(r *runner, in string, cfg *Config) string {
	return r.run(in, markdownStages(cfg)...)
}

func markdownStages(cfg *Config) []stage {
	var stages []stage

	if !cfg.KeepHeadingText {
		stages = append(stages, stage{name: "heading-lines", fn: func(in string, res *Result) (string, error) {
			n := 0
			out := mdHeadingLineRe.ReplaceAllStringFunc(in, func(string) string {
				n++
				return ""
			})
			res.Stats.RecordRemoval("heading", n)
			return out, nil
		}})
	}

	stages = append(stages,
		stage{name: "noise-elements", budgeted: true, fn: func(in string, res *Result) (string, error) {
			return removeRules(in, mdNoiseRules, res), nil
		}},
		stage{name: "comments", fn: func(in string, res *Result) (string, error) {
			n := 0
			out := commentRe.ReplaceAllStringFunc(in, func(string) string {
				n++
				return ""
			})
			res.Stats.RecordRemoval("comment", n)
			return out, nil
		}},
	)

	if cfg.RemoveBoilerplate && len(cfg.BoilerplatePatterns) > 0 {
		patterns := cfg.BoilerplatePatterns
		stages = append(stages, stage{name: "boilerplate", budgeted: true, fn: func(in string, res *Result) (string, error) {
			rules, err := boilerplateRules(patterns)
			if err != nil {
				return "", err
			}
			for _, rule := range rules {
				var n int
				in, n = rule.removeCount(in)
				res.Stats.RecordRemoval("boilerplate", n)
			}
			return in, nil
		}})
	}

	stages = append(stages,
		stage{name: "svg", budgeted: true, fn: func(in string, res *Result) (string, error) {
			out, n := mdSVGRule.removeCount(in)
			res.Stats.RecordRemoval("svg", n)
			return out, nil
		}},
		stage{name: "attributes", budgeted: true, fn: func(in string, _ *Result) (string, error) {
			return attributesRe.ReplaceAllString(in, "<${1}${2}>"), nil
		}},
		stage{name: "block-tags", fn: func(in string, _ *Result) (string, error) {
			out := mdHeadingTagRe.ReplaceAllString(in, "\n${2}\n")
			out = mdRuleRe.ReplaceAllString(out, "\n---\n")
			out = mdBreakRe.ReplaceAllString(out, "\n")
			return mdBlockTagRe.ReplaceAllString(out, "\n"), nil
		}},
		stage{name: "tags", fn: func(in string, _ *Result) (string, error) {
			return mdAnyTagRe.ReplaceAllString(in, ""), nil
		}},
		stage{name: "entities", fn: func(in string, _ *Result) (string, error) {
			return nbspReplacer.Replace(html.UnescapeString(in)), nil
		}},
		stage{name: "images", fn: func(in string, res *Result) (string, error) {
			n := 0
			out := mdImageRe.ReplaceAllStringFunc(in, func(string) string {
				n++
				return ""
			})
			res.Stats.RecordRemoval("image", n)
			return out, nil
		}},
		stage{name: "links", fn: linkStage(cfg.LinkPolicy)},
		stage{name: "syntax", fn: func(in string, _ *Result) (string, error) {
			return stripMarkdownSyntax(in), nil
		}},
		stage{name: "control-chars", fn: func(in string, _ *Result) (string, error) {
			return strings.Map(dropControl, in), nil
		}},
		stage{name: "whitespace", fn: func(in string, _ *Result) (string, error) {
			out := mdHorizontalWSRe.ReplaceAllString(in, " ")
			out = mdLineEdgeRe.ReplaceAllString(out, "")
			return mdBlankRunRe.ReplaceAllString(out, "\n\n"), nil
		}},
	)

	return stages
}

func linkStage(policy LinkPolicy) transform {
	return func(in string, res *Result) (string, error) {
		n := 0
		var out string
		switch policy {
		case LinkKeepText, "":
			out = mdLinkRe.ReplaceAllStringFunc(in, func(m string) string {
				n++
				return mdLinkRe.ReplaceAllString(m, "${1}")
			})
		case LinkDrop:
			out = mdLinkRe.ReplaceAllStringFunc(in, func(string) string {
				n++
				return ""
			})
		default:
			return "", fmt.Errorf("unknown link policy %q", policy)
		}
		res.Stats.RecordRemoval("link", n)
		return out, nil
	}
}

// stripMarkdownSyntax removes code fences, unwraps inline code and emphasis,
// and strips heading markers.
func stripMarkdownSyntax(in string) string {
	out := backtickFenceRe.ReplaceAllString(in, "")
	out = tildeFenceRe.ReplaceAllString(out, "")
	out = mdInlineCodeRe.ReplaceAllString(out, "${1}")
	out = mdHeadingMarkRe.ReplaceAllString(out, "")
	out = mdBoldStarRe.ReplaceAllString(out, "${1}")
	out = mdBoldUnderRe.ReplaceAllString(out, "${1}${2}")
	out = mdItalicStarRe.ReplaceAllString(out, "${1}")
	return mdItalicUnderRe.ReplaceAllString(out, "${1}${2}")
}

// dropControl removes C0 control characters other than tab and newline,
// and DEL.
func dropControl(r rune) rune {
	if (r < 0x20 && r != '\t' && r != '\n') || r == 0x7f {
		return -1
	}
	return r
}

// StripMarkdown runs the Markdown stages on s without normalizing lines.
// A nil config uses DefaultConfig().
func StripMarkdown(ctx context.Context, s string, cfg *Config) (string, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("strip markdown: %w", err)
	}
	ctx, cancel := cfg.Budget.context(ctx)
	defer cancel()
	return stripMarkdown(newRunner(ctx, FormatMarkdown, newResult(len(s))), s, cfg), nil
}
