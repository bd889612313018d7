package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Transfer orchestration
	// ============================================
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_transfers_total",
			Help: "Transfer attempts by terminal stage and error kind (kind empty on success)",
		},
		[]string{"stage", "kind"},
	)

	ProofFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_proof_fetch_total",
			Help: "Proof issuer requests by result",
		},
		[]string{"result"},
	)

	BalanceReadAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_balance_read_attempts_total",
			Help: "Individual balance read attempts by result",
		},
		[]string{"result"},
	)

	GasEstimateFallback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_gas_estimate_fallback_total",
			Help: "Submissions that used a fixed gas limit instead of an estimate",
		},
		[]string{"reason"},
	)

	AccountCreations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_account_creations_total",
			Help: "Account creation requests by result",
		},
		[]string{"result"},
	)

	// ============================================
	// Confirmation tracking
	// ============================================
	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_confirmations_total",
			Help: "Settled confirmation waits by result (confirmed, reverted, unknown)",
		},
		[]string{"result"},
	)

	ConfirmationWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zkaccount_confirmation_wait_seconds",
		Help:    "Time from submission to settlement notification",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60},
	})

	TrackedTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkaccount_tracked_transactions",
		Help: "Transactions currently awaiting a receipt",
	})

	// ============================================
	// Infrastructure
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkaccount_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NotifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkaccount_settlement_notifier_failures_total",
			Help: "Settlement notifications that could not be delivered",
		},
		[]string{"notifier"},
	)

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkaccount_websocket_clients",
		Help: "Connected settlement stream subscribers",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zkaccount_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
