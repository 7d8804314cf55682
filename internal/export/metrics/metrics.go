package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions counts export jobs accepted by the backend.
	Submissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exporter_submissions_total",
		Help: "Total export jobs submitted",
	})

	// Completions counts completion events by result.
	Completions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_completions_total",
			Help: "Total completion events consumed",
		},
		[]string{"result"},
	)

	// Timeouts counts jobs whose deadline fired with no completion.
	Timeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exporter_timeouts_total",
		Help: "Total jobs timed out awaiting completion",
	})

	// Recoveries counts timeout-recovery probes by outcome.
	Recoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_recoveries_total",
			Help: "Total timeout recovery attempts",
		},
		[]string{"outcome"},
	)

	// Retries counts retried attempts by phase.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_retries_total",
			Help: "Total retried attempts",
		},
		[]string{"phase"},
	)

	// APIErrors counts failed API calls per endpoint.
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_api_errors_total",
			Help: "Total failed Nimbus API calls",
		},
		[]string{"endpoint"},
	)

	// APILatency tracks API call latency per endpoint.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exporter_api_latency_seconds",
			Help:    "Nimbus API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// RateLimitWaitSeconds totals time spent blocked on the token bucket.
	RateLimitWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exporter_rate_limit_wait_seconds_total",
		Help: "Total seconds callers spent waiting for a rate-limit token",
	})

	// DownloadBytes totals artifact bytes written to disk.
	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exporter_download_bytes_total",
		Help: "Total artifact bytes downloaded",
	})

	// PendingJobs gauges jobs awaiting a completion event.
	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exporter_pending_jobs",
		Help: "Jobs currently awaiting completion",
	})
)
