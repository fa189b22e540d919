// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kartikvyas1604/PhantomPool/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
// It records engine operation outcomes and counts committed notifications.
type Metrics struct {
	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Protocol metrics
	EventsTotal     *prometheus.CounterVec
	OrdersSubmitted prometheus.Counter
	OrdersCancelled prometheus.Counter
	RoundsTotal     *prometheus.CounterVec
	TradesExecuted  prometheus.Counter
	VolumeTraded    prometheus.Counter
	FeesCollected   prometheus.Counter
	ExecutorSlashes *prometheus.CounterVec

	// Feed metrics
	FeedClients  prometheus.Gauge
	FeedDropped  prometheus.Counter
	NoncesPruned prometheus.Counter

	// Health metrics
	LastCommit prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "phantompool"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of engine operations by outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "events_total",
			Help:      "Total number of committed notifications by kind",
		}, []string{"kind"}),
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "orders_submitted_total",
			Help:      "Total number of accepted orders",
		}),
		OrdersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "orders_cancelled_total",
			Help:      "Total number of cancelled orders",
		}),
		RoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "rounds_total",
			Help:      "Total number of matching rounds by final status",
		}, []string{"status"}),
		TradesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "trades_executed_total",
			Help:      "Total number of settled trade pairs",
		}),
		VolumeTraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "volume_base_units_total",
			Help:      "Total settled volume in base asset units",
		}),
		FeesCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "fees_quote_units_total",
			Help:      "Total trading fees in quote asset units",
		}),
		ExecutorSlashes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "executor_slashes_total",
			Help:      "Total number of executor slashes by violation",
		}, []string{"violation"}),

		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Current number of connected feed clients",
		}),
		FeedDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Total number of feed clients dropped for falling behind",
		}),
		NoncesPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "nonces_pruned_total",
			Help:      "Total number of nonce records pruned",
		}),

		LastCommit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_commit_timestamp",
			Help:      "Unix timestamp of the last committed operation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving only the given registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordOperation records one engine operation. outcome is "ok" or an error kind.
func (m *Metrics) RecordOperation(op, outcome string, d time.Duration) {
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Notify counts the notifications of a committed operation.
func (m *Metrics) Notify(_ context.Context, events []*domain.Event) {
	for _, ev := range events {
		m.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()

		switch ev.Kind {
		case domain.EventOrderSubmitted:
			m.OrdersSubmitted.Inc()
		case domain.EventOrderCancelled:
			m.OrdersCancelled.Inc()
		case domain.EventRoundCompleted:
			m.RoundsTotal.WithLabelValues(domain.RoundStatusCompleted.String()).Inc()
			m.FeesCollected.Add(attrFloat(ev, "fees"))
		case domain.EventRoundFailed:
			m.RoundsTotal.WithLabelValues(domain.RoundStatusFailed.String()).Inc()
		case domain.EventTradeExecuted:
			m.TradesExecuted.Inc()
			if ev.Trade != nil {
				m.VolumeTraded.Add(float64(ev.Trade.MatchedAmount))
			}
		case domain.EventExecutorSlashed:
			m.ExecutorSlashes.WithLabelValues(ev.Attributes["violation"]).Inc()
		}
	}
	if n := len(events); n > 0 {
		m.LastCommit.Set(float64(events[n-1].At))
	}
}

// RecordNoncesPruned adds to the pruned nonce counter.
func (m *Metrics) RecordNoncesPruned(n int64) {
	m.NoncesPruned.Add(float64(n))
}

func attrFloat(ev *domain.Event, key string) float64 {
	v, err := strconv.ParseUint(ev.Attributes[key], 10, 64)
	if err != nil {
		return 0
	}
	return float64(v)
}
