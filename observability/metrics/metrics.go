package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics collects the counters and gauges the engine exposes for
// keeper operators and dashboards. It is process-global because the engine
// itself is a process-global singleton per deployment.
type engineMetrics struct {
	ordersSubmitted   prometheus.Counter
	ordersCancelled   prometheus.Counter
	ordersExecuted    prometheus.Counter
	liquidations      prometheus.Counter
	feesCollected     *prometheus.CounterVec
	openInterest      *prometheus.GaugeVec
	poolBalance       *prometheus.GaugeVec
	poolBuffer        *prometheus.GaugeVec
	fundingIndex      *prometheus.GaugeVec
	commandLatencySec prometheus.Histogram
}

var (
	engineMetricsOnce sync.Once
	registry          *engineMetrics
)

// Default returns the process-wide metrics registry, registering it with the
// default prometheus registerer on first use.
func Default() *engineMetrics {
	engineMetricsOnce.Do(func() {
		registry = &engineMetrics{
			ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "perp",
				Subsystem: "orderbook",
				Name:      "orders_submitted_total",
				Help:      "Total orders accepted by the order book.",
			}),
			ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "perp",
				Subsystem: "orderbook",
				Name:      "orders_cancelled_total",
				Help:      "Total orders removed before execution.",
			}),
			ordersExecuted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "perp",
				Subsystem: "execution",
				Name:      "orders_executed_total",
				Help:      "Total orders executed by a keeper batch.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "perp",
				Subsystem: "execution",
				Name:      "liquidations_total",
				Help:      "Total positions forcibly closed by the liquidation path.",
			}),
			feesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "perp",
				Subsystem: "fees",
				Name:      "collected_total",
				Help:      "Total fee amount collected, labeled by asset and share.",
			}, []string{"asset", "share"}),
			openInterest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "perp",
				Subsystem: "position",
				Name:      "open_interest",
				Help:      "Current open interest, labeled by market and side.",
			}, []string{"market", "side"}),
			poolBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "perp",
				Subsystem: "liquidity",
				Name:      "pool_balance",
				Help:      "Current liquidity pool principal balance, labeled by asset.",
			}, []string{"asset"}),
			poolBuffer: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "perp",
				Subsystem: "liquidity",
				Name:      "pool_buffer_balance",
				Help:      "Current liquidity pool buffer balance, labeled by asset.",
			}, []string{"asset"}),
			fundingIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "perp",
				Subsystem: "funding",
				Name:      "cumulative_index",
				Help:      "Current cumulative funding index, labeled by market.",
			}, []string{"market"}),
			commandLatencySec: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "perp",
				Subsystem: "engine",
				Name:      "command_latency_seconds",
				Help:      "Time to process a single serialized engine command.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			registry.ordersSubmitted,
			registry.ordersCancelled,
			registry.ordersExecuted,
			registry.liquidations,
			registry.feesCollected,
			registry.openInterest,
			registry.poolBalance,
			registry.poolBuffer,
			registry.fundingIndex,
			registry.commandLatencySec,
		)
	})
	return registry
}

func (m *engineMetrics) OrderSubmitted() { m.ordersSubmitted.Inc() }
func (m *engineMetrics) OrderCancelled() { m.ordersCancelled.Inc() }
func (m *engineMetrics) OrderExecuted()  { m.ordersExecuted.Inc() }
func (m *engineMetrics) Liquidation()    { m.liquidations.Inc() }

func (m *engineMetrics) FeeCollected(asset, share string, amount float64) {
	m.feesCollected.WithLabelValues(asset, share).Add(amount)
}

func (m *engineMetrics) SetOpenInterest(market, side string, amount float64) {
	m.openInterest.WithLabelValues(market, side).Set(amount)
}

func (m *engineMetrics) SetPoolBalance(asset string, amount float64) {
	m.poolBalance.WithLabelValues(asset).Set(amount)
}

func (m *engineMetrics) SetPoolBuffer(asset string, amount float64) {
	m.poolBuffer.WithLabelValues(asset).Set(amount)
}

func (m *engineMetrics) SetFundingIndex(market string, amount float64) {
	m.fundingIndex.WithLabelValues(market).Set(amount)
}

func (m *engineMetrics) ObserveCommandLatency(seconds float64) {
	m.commandLatencySec.Observe(seconds)
}
