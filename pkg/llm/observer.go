package llm

import (
	"context"

	"github.com/jmylchreest/serpscope/internal/logger"
	"github.com/jmylchreest/serpscope/internal/metrics"
)

// instrumented records request counts, token usage and latency for every
// call to the wrapped provider.
type instrumented struct {
	Provider
}

// Instrument wraps p so each Execute is logged and counted in metrics.
// Instrumenting twice returns the same wrapper.
func Instrument(p Provider) Provider {
	if _, ok := p.(*instrumented); ok {
		return p
	}
	return &instrumented{Provider: p}
}

func (i *instrumented) Execute(ctx context.Context, req Request) (*Response, error) {
	resp, err := i.Provider.Execute(ctx, req)
	if err != nil {
		metrics.ExternalRequests.WithLabelValues(i.Name(), "error").Inc()
		logger.DebugContext(ctx, "llm call failed", "provider", i.Name(), "model", i.Model(), "error", err)
		return nil, err
	}

	metrics.ExternalRequests.WithLabelValues(i.Name(), "ok").Inc()
	metrics.ObserveTokenUsage(i.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	logger.DebugContext(ctx, "llm call complete",
		"provider", i.Name(),
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"finish_reason", resp.FinishReason,
		"duration", resp.Duration)
	return resp, nil
}
