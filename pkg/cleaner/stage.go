package cleaner

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/internal/metrics"
)

// transform is one text-to-text stage of a pipeline.
type transform func(in string, result *Result) (string, error)

// stage is a named transform. Budgeted stages are skipped once the
// processing budget has been spent.
type stage struct {
	name     string
	budgeted bool
	fn       transform
}

// runner executes stages in order against a shared budget.
// A stage that fails or panics is skipped and the text it received is kept.
type runner struct {
	ctx     context.Context
	result  *Result
	format  Format
	expired bool
}

func newRunner(ctx context.Context, format Format, result *Result) *runner {
	return &runner{ctx: ctx, format: format, result: result}
}

// spent reports whether the budget is exhausted, recording the first
// observation as a partial result.
func (r *runner) spent() bool {
	if r.expired {
		return true
	}
	if r.ctx.Err() == nil {
		return false
	}
	r.expired = true
	r.result.Partial = true
	metrics.PartialResults.WithLabelValues(string(r.format)).Inc()
	logger.Warn("cleaner budget exhausted, returning partial result",
		"format", r.format, "reason", context.Cause(r.ctx))
	return true
}

// run executes every stage in order and returns the final text.
func (r *runner) run(in string, stages ...stage) string {
	text := in
	for _, s := range stages {
		text = r.apply(s, text)
	}
	return text
}

// apply executes a single stage.
func (r *runner) apply(s stage, in string) string {
	if s.budgeted && r.spent() {
		r.skip(s.name, PhaseBudget, "processing budget exhausted")
		return in
	}

	start := time.Now()
	out, err := r.call(s, in)
	r.result.Stats.StageDurations[s.name] += time.Since(start)

	if err != nil {
		r.skip(s.name, PhaseTransform, err.Error())
		logger.Debug("cleaner stage skipped", "stage", s.name, "format", r.format, "error", err)
		return in
	}
	r.result.Stats.StagesRun++
	return out
}

func (r *runner) call(s stage, in string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage %s panicked: %v", s.name, rec)
		}
	}()
	return s.fn(in, r.result)
}

func (r *runner) skip(name, phase, message string) {
	r.result.Stats.StagesSkipped++
	r.result.AddWarning(phase, message, name)
	metrics.StagesSkipped.WithLabelValues(name).Inc()
}
