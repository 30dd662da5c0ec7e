// Package metrics holds the Prometheus collectors of the ledger and the side
// server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups every collector the server updates.
type Metrics struct {
	FinesRecorded   *prometheus.CounterVec
	FineAmount      *prometheus.CounterVec
	MatchesRecorded *prometheus.CounterVec
	Settlements     prometheus.Counter
	SettledAmount   prometheus.Counter
	TotalsRepaired  prometheus.Counter
	RPCDuration     *prometheus.HistogramVec
	NotifyFailures  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FinesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtledger_fines_recorded_total",
			Help: "Fines recorded, by owner.",
		}, []string{"participant"}),
		FineAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtledger_fine_amount_total",
			Help: "Sum of recorded fine amounts, by owner.",
		}, []string{"participant"}),
		MatchesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtledger_matches_recorded_total",
			Help: "Matches recorded, by winner.",
		}, []string{"winner"}),
		Settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtledger_settlements_total",
			Help: "Settlements recorded.",
		}),
		SettledAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtledger_settled_amount_total",
			Help: "Sum of settled balances.",
		}),
		TotalsRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtledger_totals_repaired_total",
			Help: "Times the stored totals disagreed with the event log and were rebuilt.",
		}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courtledger_rpc_duration_seconds",
			Help:    "RPC latency by procedure and result code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtledger_notify_failures_total",
			Help: "Event notifications that could not be published, by event type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.FinesRecorded,
		m.FineAmount,
		m.MatchesRecorded,
		m.Settlements,
		m.SettledAmount,
		m.TotalsRepaired,
		m.RPCDuration,
		m.NotifyFailures,
	)
	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
