// Package metrics holds the prometheus collectors for serpscope.
// Collectors live in a private registry; expose them with Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace         = "serpscope"
	SubsystemCleaner  = "cleaner"
	SubsystemExternal = "external"
	SubsystemAnalysis = "analysis"
	LabelUnknown      = "unknown"
)

var registry = prometheus.NewRegistry()

var (
	// DocumentsCleaned counts completed cleaning runs by format.
	DocumentsCleaned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCleaner,
		Name:      "documents_total",
		Help:      "The total number of documents cleaned.",
	}, []string{"format"})

	// PartialResults counts runs that exhausted their processing budget.
	PartialResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCleaner,
		Name:      "partial_results_total",
		Help:      "The total number of cleaning runs that returned a partial result.",
	}, []string{"format"})

	// StagesSkipped counts stages skipped after a failure or budget expiry.
	StagesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCleaner,
		Name:      "stages_skipped_total",
		Help:      "The total number of cleaning stages that were skipped.",
	}, []string{"stage"})

	// CleanDuration observes whole-run cleaning latency.
	CleanDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: SubsystemCleaner,
		Name:      "duration_seconds",
		Help:      "Time taken to clean a document.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
	}, []string{"format"})

	// ExternalRequests counts calls to third-party APIs by client and status.
	ExternalRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemExternal,
		Name:      "requests_total",
		Help:      "The total number of requests to external APIs.",
	}, []string{"client", "status"})

	// TokensUsed counts LLM tokens by provider and direction.
	TokensUsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemAnalysis,
		Name:      "tokens_total",
		Help:      "The total number of LLM tokens consumed.",
	}, []string{"provider", "direction"})
)

func init() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		collectors.NewGoCollector(),
		DocumentsCleaned,
		PartialResults,
		StagesSkipped,
		CleanDuration,
		ExternalRequests,
		TokensUsed,
	)
}

// Registry returns the registry holding all serpscope collectors.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveTokenUsage records LLM token consumption for a provider.
func ObserveTokenUsage(provider string, inputTokens, outputTokens int) {
	if provider == "" {
		provider = LabelUnknown
	}
	if inputTokens > 0 {
		TokensUsed.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		TokensUsed.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}
