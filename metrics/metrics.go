// Package metrics registers the service's Prometheus collectors and exposes
// the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "researchd"

var (
	// RequestsTotal counts HTTP requests by path and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by path and status code.",
	}, []string{"path", "code"})

	// ResearchDuration observes end-to-end research run latency.
	ResearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "research_duration_seconds",
		Help:      "End-to-end research run duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// LLMCallsTotal counts model invocations across all runs.
	LLMCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Model invocations made by research runs.",
	})

	// ToolExecutionsTotal counts tool calls by tool name and outcome.
	ToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_executions_total",
		Help:      "Tool executions, by tool name and outcome (ok or error).",
	}, []string{"tool", "outcome"})
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
