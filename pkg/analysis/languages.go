package analysis

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is used for blank or unparseable language tags.
const DefaultLanguage = "en"

// NormalizeLanguage returns the canonical BCP 47 form of code, or
// DefaultLanguage when code is blank or invalid.
func NormalizeLanguage(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil || tag == language.Und {
		return DefaultLanguage
	}
	return tag.String()
}

// LanguageName returns the English name of a language tag, e.g. "German"
// for "de" and "Brazilian Portuguese" for "pt-BR".
func LanguageName(code string) string {
	tag, err := language.Parse(NormalizeLanguage(code))
	if err != nil {
		tag = language.English
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return display.English.Tags().Name(language.English)
}
