package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PayLedger.
type Metrics struct {
	// --- Engine ---
	TransactionsApplied  *prometheus.CounterVec
	TransactionsRejected *prometheus.CounterVec
	ApplyDuration        *prometheus.HistogramVec

	// --- Ledger state, refreshed by the runners ---
	Accounts         prometheus.Gauge
	AccountsLocked   prometheus.Gauge
	DepositsRetained prometheus.Gauge

	// --- Channels ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec

	// --- Ingestion and export ---
	IngestErrors       *prometheus.CounterVec
	ExportRows         prometheus.Counter
	SnapshotsPublished prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	applyBuckets := []float64{
		0.0000001, 0.00000025, 0.0000005, 0.000001, 0.0000025,
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
	}

	return &Metrics{
		TransactionsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_transactions_applied_total",
			Help: "Transactions successfully applied by the engine",
		}, []string{"kind"}),

		TransactionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_transactions_rejected_total",
			Help: "Transactions rejected by the engine",
		}, []string{"kind", "reason"}),

		ApplyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payledger_apply_duration_seconds",
			Help:    "Time to apply a single transaction",
			Buckets: applyBuckets,
		}, []string{"kind"}),

		Accounts: f.NewGauge(prometheus.GaugeOpts{
			Name: "payledger_accounts",
			Help: "Known client accounts",
		}),

		AccountsLocked: f.NewGauge(prometheus.GaugeOpts{
			Name: "payledger_accounts_locked",
			Help: "Accounts locked by a chargeback",
		}),

		DepositsRetained: f.NewGauge(prometheus.GaugeOpts{
			Name: "payledger_deposits_retained",
			Help: "Successful deposits kept as dispute candidates",
		}),

		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payledger_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payledger_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payledger_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		IngestErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_ingest_errors_total",
			Help: "Malformed records seen by a source",
		}, []string{"source"}),

		ExportRows: f.NewCounter(prometheus.CounterOpts{
			Name: "payledger_export_rows_total",
			Help: "Account snapshot rows written to Postgres",
		}),

		SnapshotsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "payledger_snapshots_published_total",
			Help: "Account snapshots published to NATS",
		}),

		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payledger_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payledger_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}

// SetLedgerGauges records the size of the ledger state.
func (m *Metrics) SetLedgerGauges(accounts, locked, deposits int) {
	m.Accounts.Set(float64(accounts))
	m.AccountsLocked.Set(float64(locked))
	m.DepositsRetained.Set(float64(deposits))
}
