package cleaner

import (
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// mergeTrim is stripped from the end of a short line before it is merged
// into the next one.
const mergeTrim = " .,;:!?"

// Normalizer is the final stage shared by all cleaners. It trims and
// filters lines, removes duplicates and merges short lines forward.
//
// Normalize is not idempotent: merged output may contain lines short enough
// to be merged again on a second pass.
type Normalizer struct {
	// MinLineLength drops lines with fewer runes. Zero drops empty lines only.
	MinLineLength int
	// MergeThreshold merges lines with fewer runes into the next line.
	// Zero disables merging.
	MergeThreshold int
	// NormalizeUnicode applies NFC to each line.
	NormalizeUnicode bool
}

// Normalize returns text as newline-joined, deduplicated lines.
func (n Normalizer) Normalize(text string) string {
	return n.normalize(text, NewStats())
}

func (n Normalizer) normalize(text string, stats *Stats) string {
	raw := strings.Split(text, "\n")
	stats.LinesIn += len(raw)

	lines := make([]string, 0, len(raw))
	seen := make(map[uint64][]string, len(raw))
	for _, line := range raw {
		line = strings.Join(strings.Fields(line), " ")
		if n.NormalizeUnicode {
			line = norm.NFC.String(line)
		}
		if line == "" || utf8.RuneCountInString(line) < n.MinLineLength {
			stats.LinesDropped++
			continue
		}

		key := xxhash.Sum64String(line)
		if containsLine(seen[key], line) {
			stats.LinesDeduped++
			continue
		}
		seen[key] = append(seen[key], line)
		lines = append(lines, line)
	}

	return strings.Join(n.merge(lines, stats), "\n")
}

func containsLine(bucket []string, line string) bool {
	for _, s := range bucket {
		if s == line {
			return true
		}
	}
	return false
}

// merge makes one left-to-right pass joining each short line with its
// successor. A merged pair is never merged again in the same pass.
func (n Normalizer) merge(lines []string, stats *Stats) []string {
	if n.MergeThreshold <= 0 {
		return lines
	}
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		cur := lines[i]
		if i+1 < len(lines) && utf8.RuneCountInString(cur) < n.MergeThreshold {
			next := lines[i+1]
			if head := strings.TrimRight(cur, mergeTrim); head != "" {
				next = head + " " + next
			}
			out = append(out, next)
			stats.LinesMerged++
			i += 2
			continue
		}
		out = append(out, cur)
		i++
	}
	return out
}
