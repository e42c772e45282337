// Copyright 2025 UkweliDB Authors
//
// Package metrics exposes Prometheus counters and histograms for ledger,
// WAL, recovery, and workflow operations, following the teacher's
// convention of a single package-level set of client_golang collectors
// rather than threading a registry through every call site.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RecordsAppended counts successful ledger.Ledger.AddRecord calls.
	RecordsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ukwelidb",
		Name:      "records_appended_total",
		Help:      "Total number of records successfully appended to a ledger.",
	})

	// UsersRegistered counts new (non-idempotent) RegisterUser calls.
	UsersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ukwelidb",
		Name:      "users_registered_total",
		Help:      "Total number of new users registered across all ledgers.",
	})

	// WALEntriesAppended counts successful wal.Writer Append* calls.
	WALEntriesAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ukwelidb",
		Name:      "wal_entries_appended_total",
		Help:      "Total number of entries durably appended to a WAL.",
	})

	// WALChecksumMismatches counts wal.ReadAll calls that found a
	// corrupt (non-truncation) entry checksum.
	WALChecksumMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ukwelidb",
		Name:      "wal_checksum_mismatches_total",
		Help:      "Total number of WAL entries rejected for a payload checksum mismatch.",
	})

	// CompactionsTotal counts successful recovery.Compact calls.
	CompactionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ukwelidb",
		Name:      "compactions_total",
		Help:      "Total number of successful snapshot compactions.",
	})

	// ChainVerifyDuration observes how long ledger.Ledger.VerifyChain
	// takes end to end.
	ChainVerifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ukwelidb",
		Name:      "chain_verify_duration_seconds",
		Help:      "Time spent walking and verifying a full ledger chain.",
		Buckets:   prometheus.DefBuckets,
	})

	// TransitionsValidated counts workflow.Engine.ValidateTransition
	// calls by outcome ("accepted" or "rejected").
	TransitionsValidated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ukwelidb",
		Name:      "transitions_validated_total",
		Help:      "Total number of workflow transition validations, by outcome.",
	}, []string{"outcome"})
)

// MustRegister registers every collector in this package against reg. It
// panics on a duplicate registration, matching client_golang's own
// MustRegister semantics — callers are expected to call this exactly
// once per process.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		RecordsAppended,
		UsersRegistered,
		WALEntriesAppended,
		WALChecksumMismatches,
		CompactionsTotal,
		ChainVerifyDuration,
		TransitionsValidated,
	)
}
