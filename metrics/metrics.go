// Package metrics exposes Prometheus instrumentation for scan and
// order activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "safealpha_scans_total", Help: "Scan invocations"},
	)
	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "safealpha_candidates_total", Help: "Candidates emitted per signal strength"},
		[]string{"strength"},
	)
	SymbolsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "safealpha_symbols_skipped_total", Help: "Universe symbols skipped per reason"},
		[]string{"reason"},
	)
	EntriesBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "safealpha_entries_blocked_total", Help: "New entries vetoed per gate reason"},
		[]string{"reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "safealpha_orders_total", Help: "Orders placed per side and outcome"},
		[]string{"side", "outcome"},
	)
	PriceLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "safealpha_price_lookup_failures_total", Help: "Per-position price lookups that failed during equity estimation"},
	)
	Drawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "safealpha_drawdown", Help: "Current fractional drawdown from peak equity"},
	)
)

func init() {
	prometheus.MustRegister(
		ScansTotal, CandidatesTotal, SymbolsSkippedTotal,
		EntriesBlockedTotal, OrdersTotal, PriceLookupFailures, Drawdown,
	)
}

// Serve starts the /metrics endpoint in the background. The returned
// server can be shut down by the caller.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
