// Package metrics exposes simulator counters and gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
)

const namespace = "dexsim"

// Metrics holds all Prometheus metrics of one session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OracleTicks   prometheus.Counter
	OraclePrice   *prometheus.GaugeVec
	HistoryPoints *prometheus.GaugeVec

	Trades       *prometheus.CounterVec
	Rejections   *prometheus.CounterVec
	FeesPaid     *prometheus.CounterVec
	PoolReserves *prometheus.GaugeVec

	StreamDrops *prometheus.CounterVec
}

// New creates metrics registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OracleTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_ticks_total",
			Help:      "Price snapshots emitted by the oracle",
		}),
		OraclePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_price",
			Help:      "Latest oracle price per asset",
		}, []string{"symbol"}),
		HistoryPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_points",
			Help:      "Retained price points per asset",
		}, []string{"symbol"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Executed trades by kind and pool",
		}, []string{"kind", "pool"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected operations by kind and reason",
		}, []string{"kind", "reason"}),
		FeesPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_paid_total",
			Help:      "Swap fees paid in units of the input symbol",
		}, []string{"symbol"}),
		PoolReserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserve",
			Help:      "Pool reserves by pool and side",
		}, []string{"pool", "side"}),
		StreamDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_drops_total",
			Help:      "Events dropped for slow stream subscribers",
		}, []string{"stream"}),
	}

	m.registry.MustRegister(
		m.OracleTicks,
		m.OraclePrice,
		m.HistoryPoints,
		m.Trades,
		m.Rejections,
		m.FeesPaid,
		m.PoolReserves,
		m.StreamDrops,
	)

	return m
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnPriceSnapshot counts an oracle tick and records the latest prices.
func (m *Metrics) OnPriceSnapshot(s domain.PriceSnapshot) {
	if m == nil {
		return
	}
	m.OracleTicks.Inc()
	for sym, price := range s.Prices {
		m.OraclePrice.WithLabelValues(sym.String()).Set(price.InexactFloat64())
	}
}

// ObserveHistory records the retained point count of sym.
func (m *Metrics) ObserveHistory(sym domain.Symbol, points int) {
	if m == nil {
		return
	}
	m.HistoryPoints.WithLabelValues(sym.String()).Set(float64(points))
}

// ObserveTrade records an executed receipt routed through pool.
func (m *Metrics) ObserveTrade(r domain.TradeReceipt, pool domain.PoolKey) {
	if m == nil {
		return
	}
	m.Trades.WithLabelValues(string(r.Kind), pool.String()).Inc()
	if r.Fee.IsPositive() {
		m.FeesPaid.WithLabelValues(r.From.String()).Add(r.Fee.InexactFloat64())
	}
}

// ObserveRejection counts a rejected operation.
func (m *Metrics) ObserveRejection(kind domain.TradeKind, reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(string(kind), reason).Inc()
}

// ObservePool records the reserves of p.
func (m *Metrics) ObservePool(key domain.PoolKey, p domain.Pool) {
	if m == nil {
		return
	}
	m.PoolReserves.WithLabelValues(key.String(), "asset").Set(toFloat(p.ReserveAsset))
	m.PoolReserves.WithLabelValues(key.String(), "stable").Set(toFloat(p.ReserveStable))
}

// ObserveStreamDrop counts an event dropped for a slow subscriber of stream.
func (m *Metrics) ObserveStreamDrop(stream string) {
	if m == nil {
		return
	}
	m.StreamDrops.WithLabelValues(stream).Inc()
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
