// Package metrics holds the prometheus collectors for the converged
// process. Collectors register on the default registry; the API server
// exposes them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesInitiated counts InitiateTrade outcomes by result:
	// "triggered", "upstream_failure", "rejected".
	TradesInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converge_trades_initiated_total",
		Help: "Trade initiations by outcome of the synchronous relay trigger.",
	}, []string{"result"})

	// CallbacksReceived counts relay callbacks by reported status.
	CallbacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converge_trade_callbacks_total",
		Help: "Relay settlement callbacks by reported trade status.",
	}, []string{"status"})

	// StatusOverrides counts manual trade-status overrides.
	StatusOverrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converge_trade_status_overrides_total",
		Help: "Manual trade status overrides applied.",
	})

	// DispatchedOperations counts successful ledger dispatches by operation type.
	DispatchedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converge_ledger_operations_dispatched_total",
		Help: "Relay operations dispatched to the ledger, by operation type.",
	}, []string{"type"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
