// Package metrics exposes prometheus collectors for turns, routing and the
// self-correcting loops.
package metrics

import (
	"time"

	"github.com/go-go-golems/datachat/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_turns_total",
			Help: "Total number of chat turns by outcome.",
		},
		[]string{"outcome"},
	)
	turnLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datachat_turn_latency_ms",
			Help:    "End to end latency of a chat turn in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
	)
	routesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_routes_total",
			Help: "Total number of query results by presentation path.",
		},
		[]string{"path"},
	)
	sqlErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datachat_sql_errors_total",
			Help: "Total number of failed SQL executions.",
		},
	)
	loopTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_loop_transitions_total",
			Help: "Total number of retry loop state transitions by loop and target state.",
		},
		[]string{"loop", "state"},
	)
	loopAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datachat_loop_attempts",
			Help:    "Number of model calls a retry loop needed before it finished.",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
		[]string{"loop", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnLatencyMs,
		routesTotal,
		sqlErrorsTotal,
		loopTransitionsTotal,
		loopAttempts,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveRoute(path string) {
	routesTotal.WithLabelValues(path).Inc()
}

func IncrementSQLErrors() {
	sqlErrorsTotal.Inc()
}

// LoopObserver feeds retry loop transitions into the loop collectors.
type LoopObserver struct{}

func (LoopObserver) OnTransition(loop string, t retry.Transition) {
	loopTransitionsTotal.WithLabelValues(loop, t.To.String()).Inc()
	if t.To.Terminal() {
		loopAttempts.WithLabelValues(loop, t.To.String()).Observe(float64(t.Attempt))
	}
}

var _ retry.Observer = LoopObserver{}
