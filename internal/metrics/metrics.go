package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Throughput metrics - Track sync volume
var (
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staysync_poll_cycles_total",
		Help: "Total number of completed poll cycles",
	})

	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staysync_events_applied_total",
			Help: "Total number of ledger events applied by type",
		},
		[]string{"event_type"},
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staysync_events_skipped_total",
			Help: "Total number of ledger events skipped by reason",
		},
		[]string{"reason"},
	)

	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staysync_ticks_skipped_total",
		Help: "Poll ticks dropped because a cycle was still in flight",
	})
)

// Performance metrics - Track processing speed and latency
var (
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "staysync_poll_duration_seconds",
		Help:    "Time taken to fetch a batch of events from the ledger",
		Buckets: prometheus.DefBuckets,
	})

	ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "staysync_apply_duration_seconds",
		Help:    "Time taken to apply a batch of events to the store",
		Buckets: prometheus.DefBuckets,
	})
)

// State metrics - Track current system state
var (
	CurrentCursor = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "staysync_current_cursor",
			Help: "Last fully applied ledger sequence per contract",
		},
		[]string{"contract"},
	)
)

// Integrity metrics
var (
	IntegrityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staysync_integrity_checks_total",
			Help: "Total number of integrity verifications by result",
		},
		[]string{"result"},
	)
)

// Cache metrics
var (
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staysync_cache_ops_total",
			Help: "Cache operations by backend and outcome",
		},
		[]string{"backend", "op"},
	)
)

// Error metrics - Track failures
var (
	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staysync_errors_total",
			Help: "Total number of sync errors by stage",
		},
		[]string{"stage"},
	)
)
