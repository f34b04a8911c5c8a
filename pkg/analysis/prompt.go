package analysis

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/jmylchreest/serpscope/internal/logger"
)

const truncationNote = "\n\n[Content truncated due to length...]"

// systemTemplate describes the JSON object the model must return.
const systemTemplate = `You are an SEO content analyst. You study the pages that rank for a search
keyword and describe what they have in common.

RULES:
1. Output ONLY a single valid JSON object. No markdown fences, no commentary.
2. Write every value in {{.LanguageName}}.
3. Base the analysis only on the supplied pages.
4. Use empty arrays when there is nothing to report. Never omit a field.

The JSON object has these fields:
{
  "search_intent": "informational | navigational | commercial | transactional",
  "summary": "two or three sentences on what the ranking pages cover",
  "primary_keywords": ["terms every page targets"],
  "secondary_keywords": ["supporting terms used by several pages"],
  "entities": ["people, products, places and organisations mentioned"],
  "topics": ["subtopics covered across the pages"],
  "content_gaps": ["subtopics only a few pages cover or none cover well"],
  "recommended_headings": [{"tag": "h2", "text": "heading for a new page"}],
  "word_count_estimate": 0
}`

const userTemplate = `Keyword: {{.Keyword}}
Language: {{.LanguageName}} ({{.Language}})

Analyze the {{len .Pages}} page(s) below that rank for this keyword.
{{range $i, $p := .Pages}}
=== Page {{inc $i}}: {{$p.URL}} ===
{{- if $p.Headings}}
Outline:
{{- range $p.Headings}}
{{indent .Level}}{{.Tag}}: {{.Text}}
{{- end}}
{{- end}}

Content:
{{$p.Content}}
{{end}}`

var (
	funcs = template.FuncMap{
		"inc":    func(i int) int { return i + 1 },
		"indent": func(level int) string { return strings.Repeat("  ", max(level-1, 0)) },
	}
	systemTmpl = template.Must(template.New("system").Parse(systemTemplate))
	userTmpl   = template.Must(template.New("user").Funcs(funcs).Parse(userTemplate))
)

type promptData struct {
	Request
	LanguageName string
}

func systemPrompt(lang string) string {
	var sb strings.Builder
	// The template has no fallible actions.
	_ = systemTmpl.Execute(&sb, promptData{LanguageName: LanguageName(lang)})
	return sb.String()
}

func buildUserPrompt(req Request, maxPageChars int) (string, error) {
	pages := make([]Page, len(req.Pages))
	for i, p := range req.Pages {
		p.Content = truncateContent(p.URL, strings.TrimSpace(p.Content), maxPageChars)
		pages[i] = p
	}
	req.Pages = pages

	var sb strings.Builder
	if err := userTmpl.Execute(&sb, promptData{Request: req, LanguageName: LanguageName(req.Language)}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

func correctionPrompt(err error) string {
	return fmt.Sprintf("Your previous reply could not be parsed: %v\n\n"+
		"Reply again with ONLY the JSON object described in the instructions.", err)
}

// truncateContent cuts content to at most limit bytes on a rune boundary.
func truncateContent(url, content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	logger.Warn("page content truncated for analysis",
		"url", url,
		"original_size", len(content),
		"truncated_size", cut)
	return content[:cut] + truncationNote
}
