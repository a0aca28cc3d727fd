package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	Activations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bv_activations_total",
			Help: "Accounts activated with upline distribution",
		},
	)

	VolumeCredited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bv_volume_credited_total",
			Help: "BV credited to upline accounts, by side",
		},
		[]string{"side"},
	)

	Matches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bv_matches_total",
			Help: "Matches that consumed carry volume",
		},
	)

	MatchBonusPaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bv_match_bonus_paid_total",
			Help: "Net matching bonus credited to wallets",
		},
	)

	BatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bv_batch_failures_total",
			Help: "Participants that failed during batch reconciliation",
		},
	)

	Withdrawals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_withdrawals_total",
			Help: "Completed wallet withdrawals",
		},
	)

	TxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_tx_retries_total",
			Help: "Transactions retried after a transient store error",
		},
	)
)
