// Package metrics exposes Prometheus instrumentation for the record pipeline.
// All metrics are advisory: nothing in the pipeline branches on them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Receiver metrics
	RecordsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthetl_receiver_records_total",
			Help: "Total number of raw records accepted by the receiver",
		},
		[]string{"tenant", "format"},
	)

	RecordBytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthetl_receiver_record_bytes_total",
			Help: "Total bytes of raw record data received",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthetl_receiver_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiting",
		},
	)

	// Normalization metrics
	RecordsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthetl_normalizer_records_total",
			Help: "Total number of records emitted downstream after normalization",
		},
		[]string{"tenant", "format"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthetl_normalizer_records_dropped_total",
			Help: "Total number of individual records dropped during normalization",
		},
		[]string{"reason"},
	)

	EnvelopeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthetl_normalizer_envelope_failures_total",
			Help: "Total number of batch items failed for redelivery during normalization",
		},
	)

	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthetl_normalizer_duration_seconds",
			Help:    "Duration of per-item normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Persistence metrics
	RecordsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthetl_persister_records_total",
			Help: "Total number of accepted conditional writes",
		},
		[]string{"tenant"},
	)

	WriteConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthetl_persister_write_conflicts_total",
			Help: "Total number of conditional write conflicts reported for redelivery",
		},
	)

	IdempotentReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthetl_persister_idempotent_replays_total",
			Help: "Total number of identical-key redeliveries resolved as no-ops",
		},
	)

	PersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthetl_persister_duration_seconds",
			Help:    "Duration of per-record persistence in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Shared infrastructure metrics
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthetl_dlq_writes_total",
			Help: "Total number of messages escalated to the dead-letter stream",
		},
		[]string{"stage"},
	)

	AuditNotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthetl_audit_notify_failures_total",
			Help: "Total number of swallowed audit notification failures",
		},
	)
)
