package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the API surface publishes under
// /metrics. Everything here is derived from RouterStats and the event bus —
// there is no order/fill/PnL instrumentation because the core never trades.
// Each Metrics owns its own registry rather than registering against the
// global default one, so multiple Servers (e.g. one per test) can coexist
// in the same process without a duplicate-registration panic.
type Metrics struct {
	registry      *prometheus.Registry
	tradeActions  *prometheus.CounterVec
	regimeChanges *prometheus.CounterVec
	activeSymbols prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		tradeActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regime_engine",
			Name:      "trade_actions_total",
			Help:      "Trade actions routed by the strategy router, by action, source strategy, and regime.",
		}, []string{"action", "strategy", "regime"}),
		regimeChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regime_engine",
			Name:      "regime_changes_total",
			Help:      "Regime transitions detected, by the regime entered.",
		}, []string{"to"}),
		activeSymbols: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "regime_engine",
			Name:      "active_symbols",
			Help:      "Number of symbols currently tracked by the trader.",
		}),
	}
}

func (m *Metrics) ObserveTradeAction(action, sourceStrategy, regime string) {
	m.tradeActions.WithLabelValues(action, sourceStrategy, regime).Inc()
}

func (m *Metrics) ObserveRegimeChange(to string) {
	m.regimeChanges.WithLabelValues(to).Inc()
}

func (m *Metrics) SetActiveSymbols(n int) {
	m.activeSymbols.Set(float64(n))
}
