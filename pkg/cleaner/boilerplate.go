package cleaner

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Elements never removed by the class/id heuristic.
var boilerplateKeep = map[string]bool{
	"html":    true,
	"body":    true,
	"main":    true,
	"article": true,
}

const boilerplateTagSelector = "nav, footer, aside"

// removeBoilerplateDOM removes navigation landmarks and every element whose
// class or id contains one of patterns as a word. It returns the body's
// inner HTML.
func removeBoilerplateDOM(in string, patterns []string, res *Result) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	words := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		words[strings.ToLower(p)] = true
	}

	doc.Find(boilerplateTagSelector).Each(func(_ int, s *goquery.Selection) {
		res.Stats.RecordRemoval(goquery.NodeName(s), 1)
		s.Remove()
	})

	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		if boilerplateKeep[goquery.NodeName(s)] {
			return
		}
		if hasBoilerplateWord(s.AttrOr("class", ""), words) || hasBoilerplateWord(s.AttrOr("id", ""), words) {
			res.Stats.RecordRemoval("boilerplate", 1)
			s.Remove()
		}
	})

	return doc.Find("body").Html()
}

// hasBoilerplateWord splits an attribute value on whitespace, '-' and '_'
// and reports whether any token is a boilerplate word.
func hasBoilerplateWord(value string, words map[string]bool) bool {
	if value == "" {
		return false
	}
	tokens := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	for _, t := range tokens {
		if words[t] {
			return true
		}
	}
	return false
}

// Containers checked by the Markdown boilerplate stage.
var boilerplateContainers = []string{
	"div", "section", "aside", "nav", "ul", "ol", "span", "p", "header", "footer", "form",
}

var defaultBoilerplateRules = mustCompileBoilerplateRules(DefaultBoilerplatePatterns)

// boilerplateRule removes containers of one tag whose class or id contains
// a boilerplate word, up to the matching closing tag.
type boilerplateRule struct {
	name string
	open *regexp.Regexp // a single opening tag carrying a boilerplate word
	tags *regexp.Regexp // any opening or closing tag of name
}

// removeCount returns s without the matching containers and the number of
// removals. Nested tags of the same name are balanced; a container that is
// never closed is kept.
func (b boilerplateRule) removeCount(s string) (string, int) {
	type opened struct {
		start int
		match bool
	}
	var (
		stack []opened
		cuts  [][2]int
		inCut int
	)
	for _, loc := range b.tags.FindAllStringIndex(s, -1) {
		tag := s[loc[0]:loc[1]]
		switch {
		case strings.HasPrefix(tag, "</"):
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !top.match {
				continue
			}
			inCut--
			if inCut == 0 {
				cuts = append(cuts, [2]int{top.start, loc[1]})
			}
		case strings.HasSuffix(tag, "/>"):
		default:
			match := b.open.MatchString(tag)
			if match {
				inCut++
			}
			stack = append(stack, opened{start: loc[0], match: match})
		}
	}
	if len(cuts) == 0 {
		return s, 0
	}

	var sb strings.Builder
	sb.Grow(len(s))
	prev := 0
	for _, c := range cuts {
		sb.WriteString(s[prev:c[0]])
		prev = c[1]
	}
	sb.WriteString(s[prev:])
	return sb.String(), len(cuts)
}

// compileBoilerplateRules builds one rule per container tag matching an
// element whose class or id attribute contains one of patterns as a word.
func compileBoilerplateRules(patterns []string) ([]boilerplateRule, error) {
	quoted := make([]string, 0, len(patterns))
	for _, p := range patterns {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(p)))
	}
	words := strings.Join(quoted, "|")

	rules := make([]boilerplateRule, 0, len(boilerplateContainers))
	for _, tag := range boilerplateContainers {
		open, err := regexp.Compile(fmt.Sprintf(
			`(?is)^<%[1]s\b[^>]*\b(?:class|id)\s*=\s*["'][^"']*\b(?:%[2]s)\b[^"']*["'][^>]*>$`,
			tag, words))
		if err != nil {
			return nil, fmt.Errorf("compile boilerplate rule for %s: %w", tag, err)
		}
		rules = append(rules, boilerplateRule{
			name: tag,
			open: open,
			tags: regexp.MustCompile(`(?i)</?` + tag + `\b[^>]*>`),
		})
	}
	return rules, nil
}

func mustCompileBoilerplateRules(patterns []string) []boilerplateRule {
	rules, err := compileBoilerplateRules(patterns)
	if err != nil {
		panic(err)
	}
	return rules
}

// boilerplateRules returns the precompiled rules for the default patterns,
// compiling others on demand.
func boilerplateRules(patterns []string) ([]boilerplateRule, error) {
	if slices.Equal(patterns, DefaultBoilerplatePatterns) {
		return defaultBoilerplateRules, nil
	}
	return compileBoilerplateRules(patterns)
}
