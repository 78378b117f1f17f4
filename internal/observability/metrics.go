// Package observability – domain metrics
//
// Prometheus collectors for the lifecycle engine and the evidence verifier.
// HTTP-level metrics live in the middleware package; the collectors here
// count domain events so dashboards can track judgment outcomes and record
// contention independently of traffic shape.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// VerdictsTotal counts decided verdicts by outcome (approved/rejected).
	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cooler_verdicts_total",
			Help: "Total evidence verdicts applied, by outcome.",
		},
		[]string{"outcome"},
	)

	// OracleCallsTotal counts judgment oracle round trips by result:
	// "ok", "transient" (retryable failure), or "failed".
	OracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cooler_oracle_calls_total",
			Help: "Total judgment oracle calls, by result.",
		},
		[]string{"result"},
	)

	// CASConflictsTotal counts compare-and-swap attempts that lost the
	// version race and were retried.
	CASConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cooler_cas_conflicts_total",
			Help: "Total optimistic-concurrency conflicts observed.",
		},
	)
)

func init() {
	prometheus.MustRegister(VerdictsTotal, OracleCallsTotal, CASConflictsTotal)
}
