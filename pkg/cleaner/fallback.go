package cleaner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
)

const fallbackSelector = "p, h1, h2, h3, h4, h5, h6, li"

var errNoTextElements = errors.New("no paragraph, heading or list elements found")

// keepTextElements reduces an oversized document to its outermost p, h1-h6
// and li elements.
func keepTextElements(in string, threshold int, res *Result) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	var sb strings.Builder
	kept := 0
	doc.Find(fallbackSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(fallbackSelector).Length() > 0 {
			return
		}
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		sb.WriteString(outer)
		sb.WriteByte('\n')
		kept++
	})
	if kept == 0 {
		return "", errNoTextElements
	}

	res.AddWarning(PhaseFallback,
		fmt.Sprintf("content above %s, kept %d text elements", humanize.IBytes(uint64(threshold)), kept),
		"fallback")
	return sb.String(), nil
}
