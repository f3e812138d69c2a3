package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Posting metrics
	Postings          *prometheus.CounterVec
	PostingDuration   prometheus.Histogram
	PostingRetries    prometheus.Counter
	IdempotentReplays prometheus.Counter

	// Account metrics
	AccountsOpened    prometheus.Counter
	AccountOperations *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationDiscrepancies prometheus.Gauge
	ReconciliationRuns          prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Redis metrics
	RedisErrors *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Posting metrics
		Postings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatledger_postings_total",
				Help: "Total postings by currency and outcome",
			},
			[]string{"currency", "result"},
		),
		PostingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatledger_posting_duration_seconds",
			Help:    "Duration of posting operations including retries",
			Buckets: prometheus.DefBuckets,
		}),
		PostingRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "chatledger_posting_retries_total",
			Help: "Total posting attempts repeated after a transient conflict",
		}),
		IdempotentReplays: f.NewCounter(prometheus.CounterOpts{
			Name: "chatledger_idempotent_replays_total",
			Help: "Total postings answered with an already committed transaction",
		}),

		// Account metrics
		AccountsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "chatledger_accounts_opened_total",
			Help: "Total number of accounts opened",
		}),
		AccountOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatledger_account_operations_total",
				Help: "Total account lifecycle operations by type",
			},
			[]string{"operation"},
		),

		// Reconciliation metrics
		ReconciliationDiscrepancies: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatledger_reconciliation_discrepancies",
			Help: "Accounts whose balance disagreed with the transaction log in the last report",
		}),
		ReconciliationRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "chatledger_reconciliation_runs_total",
			Help: "Total reconciliation reports generated",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatledger_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		}),

		// Redis metrics
		RedisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Outbox metrics
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatledger_events_published_total",
				Help: "Total outbox events published by type",
			},
			[]string{"event_type"},
		),

		// Rate limiting metrics
		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Name: "chatledger_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}
