// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts workflow operations.
	// Labels:
	//   - action: workflow action name (submit, review, approve, ...)
	//   - outcome: "success", "denied", "invalid", "error"
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permit_transitions_total",
			Help: "Total number of permit workflow operations by outcome",
		},
		[]string{"action", "outcome"},
	)

	// DocumentsUploaded counts stored supporting documents.
	DocumentsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permit_documents_uploaded_total",
			Help: "Total number of supporting documents stored",
		},
		[]string{"document_type"},
	)

	// DocumentBytes tracks the size distribution of uploads.
	DocumentBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "permit_document_bytes",
			Help:    "Size of uploaded supporting documents in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
		},
	)

	// ExportsTotal counts activity log exports by format.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permit_activity_exports_total",
			Help: "Total number of activity log exports",
		},
		[]string{"format"},
	)

	// PermitsExpiringSoon is refreshed by the expiry sweep.
	PermitsExpiringSoon = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permits_expiring_soon",
			Help: "Approved permits whose validity ends within the warning window",
		},
	)

	// PermitsExpired is refreshed by the expiry sweep.
	PermitsExpired = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permits_expired",
			Help: "Approved permits whose validity has ended",
		},
	)

	// StorageBreakerState mirrors the file storage circuit breaker: 0 closed, 1 half-open, 2 open.
	StorageBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permit_storage_breaker_state",
			Help: "State of the document storage circuit breaker",
		},
	)

	// HTTPRequestDuration measures request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "permit_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Outcome labels for TransitionsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)
