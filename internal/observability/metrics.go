package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the risk-transfer ledger.
type Metrics struct {
	// --- Ledger operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Pool state ---
	PoolLiquidity   prometheus.Gauge
	PoolLocked      prometheus.Gauge
	PoolShares      prometheus.Gauge
	PoolUtilization prometheus.Gauge

	// --- Policy lifecycle ---
	PoliciesPurchased prometheus.Counter
	PoliciesClaimed   prometheus.Counter
	PoliciesExpired   prometheus.Counter
	ClaimPayoutTotal  prometheus.Counter
	OracleQueries     *prometheus.CounterVec

	// --- Event log ---
	EventsEmitted        *prometheus.CounterVec
	PersistEventsWritten prometheus.Counter
	PersistErrors        *prometheus.CounterVec
	PersistBatchDur      prometheus.Histogram
	PublishDrops         prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_ops_applied_total",
			Help: "Ledger operations successfully applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_ops_rejected_total",
			Help: "Ledger operations rejected (precondition failures)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_op_duration_seconds",
			Help:    "Time to apply a single ledger operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		PoolLiquidity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_total_liquidity",
			Help: "Total pool liquidity (fixed-point units)",
		}),

		PoolLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_total_locked",
			Help: "Capital locked against active policies",
		}),

		PoolShares: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_total_shares",
			Help: "Outstanding ownership shares",
		}),

		PoolUtilization: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_utilization_ratio",
			Help: "totalLocked / totalLiquidity (0.0-1.0)",
		}),

		PoliciesPurchased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_policies_purchased_total",
			Help: "Policies entering the Active state",
		}),

		PoliciesClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_policies_claimed_total",
			Help: "Policies settled via claim payout",
		}),

		PoliciesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_policies_expired_total",
			Help: "Policies durably expired",
		}),

		ClaimPayoutTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_claim_payout_total",
			Help: "Cumulative claim payouts (fixed-point units)",
		}),

		OracleQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_oracle_queries_total",
			Help: "Oracle payout queries by verdict",
		}, []string{"verdict"}),

		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_events_emitted_total",
			Help: "Notifications appended to the event log",
		}, []string{"event_type"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_events_written_total",
			Help: "Event envelopes written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}

// SetPoolGauges updates the pool state gauges after an applied operation.
func (m *Metrics) SetPoolGauges(liquidity, locked, shares int64) {
	m.PoolLiquidity.Set(float64(liquidity))
	m.PoolLocked.Set(float64(locked))
	m.PoolShares.Set(float64(shares))
	if liquidity > 0 {
		m.PoolUtilization.Set(float64(locked) / float64(liquidity))
	} else {
		m.PoolUtilization.Set(0)
	}
}
