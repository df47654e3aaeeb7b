// Package metrics exposes Prometheus instruments for request handling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "handler",
		Name:      "requests_total",
		Help:      "Total number of handled requests broken down by branch and result.",
	}, []string{"branch", "result"})

	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docchat",
		Subsystem: "handler",
		Name:      "latency_seconds",
		Help:      "Latency distribution for handled requests.",
		Buckets: []float64{
			0.01, 0.05, 0.1,
			0.25, 0.5, 1,
			2, 5, 10, 30, 60,
		},
	}, []string{"branch"})

	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "model",
		Name:      "calls_total",
		Help:      "Total number of model backend calls broken down by result.",
	}, []string{"result"})

	CallLogFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "call_log",
		Name:      "write_failures_total",
		Help:      "Call log writes that failed.",
	})

	CatalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "catalog",
		Name:      "refreshes_total",
		Help:      "Model catalog refresh attempts broken down by result.",
	}, []string{"result"})

	ConfigHeals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "config",
		Name:      "heals_total",
		Help:      "Default model write-backs broken down by result.",
	}, []string{"result"})

	SessionWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "session",
		Name:      "write_failures_total",
		Help:      "Conversation turns that could not be appended to the session store.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docchat",
		Subsystem: "session",
		Name:      "active",
		Help:      "In-memory sessions left after the last sweep.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-user rate limit.",
	})
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
