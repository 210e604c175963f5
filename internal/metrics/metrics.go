// Package metrics exposes the Prometheus collectors the Hub and
// Pollster update as the protocol runs: link balance, port idle rounds,
// fail-over counts, and delivered-AIT counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors a single node registers.
type Metrics struct {
	LinkBalance     *prometheus.GaugeVec
	PortIdleRounds  *prometheus.GaugeVec
	FailoversTotal  prometheus.Counter
	AITDeliveredTotal prometheus.Counter
}

// New constructs a fresh Metrics bundle. Callers register it with a
// prometheus.Registerer of their choosing (cmd/ether uses a dedicated
// registry from prometheus.NewRegistry).
func New() *Metrics {
	return &Metrics{
		LinkBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ether",
			Name:      "link_balance",
			Help:      "Current AIT balance (-1, 0, +1) reported by each link's port.",
		}, []string{"port"}),
		PortIdleRounds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ether",
			Name:      "port_idle_rounds",
			Help:      "Consecutive poll rounds a port has been observed non-live.",
		}, []string{"port"}),
		FailoversTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ether",
			Name:      "failovers_total",
			Help:      "Number of fail-over hand-offs completed.",
		}),
		AITDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ether",
			Name:      "ait_delivered_total",
			Help:      "Number of AIT payloads delivered to a Cell.",
		}),
	}
}

// MustRegister registers every collector with reg, panicking on
// duplicate registration (mirrors prometheus.MustRegister's contract).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.LinkBalance, m.PortIdleRounds, m.FailoversTotal, m.AITDeliveredTotal)
}
