package cleaner

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Warning phases.
const (
	PhaseInput     = "input"
	PhaseTransform = "transform"
	PhaseBudget    = "budget"
	PhaseFallback  = "fallback"
)

// Stats captures metrics about what the cleaner did.
type Stats struct {
	// Size metrics
	InputBytes  int `json:"input_bytes"`
	OutputBytes int `json:"output_bytes"`
	Chunks      int `json:"chunks"`

	// Stage counts
	StagesRun     int `json:"stages_run"`
	StagesSkipped int `json:"stages_skipped"`

	// Element counts
	ElementsRemoved map[string]int `json:"elements_removed"` // tag or rule -> count

	// Line accounting from the normalizer
	LinesIn      int `json:"lines_in"`
	LinesDropped int `json:"lines_dropped"`
	LinesDeduped int `json:"lines_deduped"`
	LinesMerged  int `json:"lines_merged"`

	// Timing
	StageDurations map[string]time.Duration `json:"stage_durations_ms"`
	TotalDuration  time.Duration            `json:"total_duration_ms"`
}

// NewStats creates a new Stats instance with initialized maps.
func NewStats() *Stats {
	return &Stats{
		ElementsRemoved: make(map[string]int),
		StageDurations:  make(map[string]time.Duration),
	}
}

// ReductionPercent returns the percentage reduction in size.
func (s *Stats) ReductionPercent() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.InputBytes-s.OutputBytes) / float64(s.InputBytes) * 100
}

// TotalElementsRemoved returns the sum of all removed elements.
func (s *Stats) TotalElementsRemoved() int {
	total := 0
	for _, count := range s.ElementsRemoved {
		total += count
	}
	return total
}

// RecordRemoval records that n elements matching name were removed.
func (s *Stats) RecordRemoval(name string, n int) {
	if n <= 0 {
		return
	}
	s.ElementsRemoved[strings.ToLower(name)] += n
}

// String returns a human-readable summary of the stats.
func (s *Stats) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Size: %s -> %s (%.1f%% reduction)\n",
		humanize.Bytes(uint64(s.InputBytes)), humanize.Bytes(uint64(s.OutputBytes)), s.ReductionPercent())

	fmt.Fprintf(&sb, "Stages: %d run, %d skipped", s.StagesRun, s.StagesSkipped)
	if s.Chunks > 1 {
		fmt.Fprintf(&sb, ", %d chunks", s.Chunks)
	}
	sb.WriteString("\n")

	if len(s.ElementsRemoved) > 0 {
		sb.WriteString("Removed: ")
		names := slices.Sorted(maps.Keys(s.ElementsRemoved))
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", name, s.ElementsRemoved[name]))
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("\n")
	}

	if s.LinesIn > 0 {
		fmt.Fprintf(&sb, "Lines: %d in, %d dropped, %d duplicates, %d merged\n",
			s.LinesIn, s.LinesDropped, s.LinesDeduped, s.LinesMerged)
	}

	fmt.Fprintf(&sb, "Timing: total=%v\n", s.TotalDuration.Round(time.Microsecond))

	return sb.String()
}

// Warning represents a non-fatal issue encountered during cleaning.
type Warning struct {
	Phase   string `json:"phase"`   // "input", "transform", "budget", "fallback"
	Message string `json:"message"` // Human-readable description
	Context string `json:"context"` // Stage that caused the issue
}

// String returns a formatted warning message.
func (w Warning) String() string {
	if w.Context != "" {
		return fmt.Sprintf("[%s] %s (context: %s)", w.Phase, w.Message, w.Context)
	}
	return fmt.Sprintf("[%s] %s", w.Phase, w.Message)
}

// Result contains the output of a cleaning operation.
type Result struct {
	// Content is the cleaned text.
	Content string `json:"content"`

	// Headings are the headings found in the original document.
	Headings []Heading `json:"headings"`

	// Stats contains metrics about what was done.
	Stats *Stats `json:"stats"`

	// Warnings contains non-fatal issues encountered.
	Warnings []Warning `json:"warnings,omitempty"`

	// Partial is set when the processing budget ran out and some removal
	// stages were skipped.
	Partial bool `json:"partial"`
}

func newResult(inputBytes int) *Result {
	r := &Result{Stats: NewStats()}
	r.Stats.InputBytes = inputBytes
	return r
}

// AddWarning adds a warning to the result.
func (r *Result) AddWarning(phase, message, context string) {
	r.Warnings = append(r.Warnings, Warning{
		Phase:   phase,
		Message: message,
		Context: context,
	})
}

// HasWarnings returns true if any warnings were recorded.
func (r *Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// SkippedStages lists the stages recorded as skipped, in order.
func (r *Result) SkippedStages() []string {
	var out []string
	for _, w := range r.Warnings {
		if w.Phase == PhaseTransform || w.Phase == PhaseBudget {
			out = append(out, w.Context)
		}
	}
	return out
}
