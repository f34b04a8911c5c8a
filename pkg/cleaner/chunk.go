package cleaner

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// stripChunked runs the markup stages chunk by chunk. Once the budget is
// spent the remaining chunks are appended unprocessed.
func stripChunked(r *runner, in string, cfg *Config) string {
	chunks := splitChunks(in, cfg.Budget.MaxChunkSize)
	r.result.Stats.Chunks = len(chunks)
	stages := htmlMarkupStages(cfg, false)

	var sb strings.Builder
	sb.Grow(len(in))
	for i, chunk := range chunks {
		if r.spent() {
			for _, rest := range chunks[i:] {
				sb.WriteString(rest)
			}
			r.result.AddWarning(PhaseBudget,
				fmt.Sprintf("%d of %d chunks appended unprocessed", len(chunks)-i, len(chunks)), "chunks")
			break
		}
		sb.WriteString(r.run(chunk, stages...))
	}
	return sb.String()
}

// splitChunks splits s into pieces of at most size bytes where possible,
// cutting only at safe boundaries. A piece is longer than size only when no
// safe boundary exists inside the window.
func splitChunks(s string, size int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		cut := safeCut(s, size)
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// safeCut returns an offset in (0, len(s)] at which s can be split without
// cutting a tag or a UTF-8 sequence. Preference order: just after the last
// complete closing tag in s[:limit], just after the last '>', just before the
// last '<', then limit itself when the window holds no tag at all, else the
// end of the tag straddling limit.
func safeCut(s string, limit int) int {
	if limit >= len(s) {
		return len(s)
	}
	window := s[:limit]

	for end := len(window); end > 0; {
		open := strings.LastIndex(window[:end], "</")
		if open < 0 {
			break
		}
		if gt := strings.IndexByte(window[open:], '>'); gt >= 0 {
			return open + gt + 1
		}
		end = open
	}

	if gt := strings.LastIndexByte(window, '>'); gt >= 0 {
		return gt + 1
	}

	lt := strings.LastIndexByte(window, '<')
	if lt > 0 {
		return lt
	}

	if lt < 0 {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut > 0 {
			return cut
		}
	}

	if gt := strings.IndexByte(s[limit:], '>'); gt >= 0 {
		return limit + gt + 1
	}
	return len(s)
}
