// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "municipal_results"

var (
	// Operations counts ledger lifecycle operations by outcome ("ok" or a domain error code).
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Ledger lifecycle operations by entity, operation and outcome.",
	}, []string{"entity", "operation", "outcome"})

	// CompilationTransitions counts automatic compilation status changes.
	CompilationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compilation_auto_transitions_total",
		Help:      "Compilation status changes triggered by result entry mutations.",
	}, []string{"to"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_sink_failures_total",
		Help:      "Audit events the sink failed to store.",
	})
)

// ObserveOperation records one ledger operation outcome
func ObserveOperation(entity, operation, outcome string) {
	Operations.WithLabelValues(entity, operation, outcome).Inc()
}

// ObserveRequest records one HTTP request
func ObserveRequest(method, route string, status int, d time.Duration) {
	HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
