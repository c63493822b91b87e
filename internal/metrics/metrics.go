// Package metrics provides Prometheus instrumentation for the core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the core's Prometheus instruments, registered against
// a private registry rather than the global one so embedding hosts can
// run multiple instances without collector-already-registered panics.
type Metrics struct {
	registry *prometheus.Registry

	FilesCreated      prometheus.Counter
	FilesDecrypted    prometheus.Counter
	EncryptionFailures prometheus.Counter
	DecryptionFailures prometheus.Counter

	SearchQueries        prometheus.Counter
	SearchRateLimited     prometheus.Counter
	SearchResultsReturned prometheus.Histogram

	TrapdoorsCreated  prometheus.Counter
	TrapdoorsRotated  prometheus.Counter
	TrapdoorsRevoked  prometheus.Counter
	ActiveTrapdoors   prometheus.Gauge

	RecoveryAttempts  prometheus.Counter
	RecoverySucceeded prometheus.Counter
	RecoveryFailed    prometheus.Counter

	StorageRetries prometheus.Counter

	KeysRotated          prometheus.Counter
	CompromiseChecks     prometheus.Counter
	CompromiseDetections prometheus.Counter

	ChunkProcessDuration prometheus.Histogram
	FileSize             prometheus.Histogram
}

// New creates a Metrics instance and registers every instrument
// against its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "zkim_core"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FilesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_created_total", Help: "Total number of files encrypted and stored.",
		}),
		FilesDecrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_decrypted_total", Help: "Total number of files successfully decrypted.",
		}),
		EncryptionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "encryption_failures_total", Help: "Total number of encryption failures.",
		}),
		DecryptionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decryption_failures_total", Help: "Total number of decryption failures.",
		}),

		SearchQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_queries_total", Help: "Total number of search queries executed.",
		}),
		SearchRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_rate_limited_total", Help: "Total number of search queries rejected by the rate limiter.",
		}),
		SearchResultsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_results_returned", Help: "Number of results returned per search query.",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),

		TrapdoorsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trapdoors_created_total", Help: "Total number of trapdoors created.",
		}),
		TrapdoorsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trapdoors_rotated_total", Help: "Total number of trapdoor rotations.",
		}),
		TrapdoorsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trapdoors_revoked_total", Help: "Total number of trapdoor revocations.",
		}),
		ActiveTrapdoors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_trapdoors", Help: "Number of currently active (non-revoked, non-expired) trapdoors.",
		}),

		RecoveryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "recovery_attempts_total", Help: "Total number of container recovery attempts.",
		}),
		RecoverySucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "recovery_succeeded_total", Help: "Total number of successful container recoveries.",
		}),
		RecoveryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "recovery_failed_total", Help: "Total number of failed container recoveries.",
		}),

		StorageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "storage_retries_total", Help: "Total number of storage get retries.",
		}),

		KeysRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "keys_rotated_total", Help: "Total number of explicit key rotations.",
		}),
		CompromiseChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "compromise_checks_total", Help: "Total number of key compromise checks performed.",
		}),
		CompromiseDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "compromise_detections_total", Help: "Total number of key compromise checks that flagged a compromise.",
		}),

		ChunkProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "chunk_process_duration_seconds", Help: "Time spent chunking, compressing, and hashing a file.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		FileSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "file_size_bytes", Help: "Size of files processed, in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}

	m.registry.MustRegister(
		m.FilesCreated, m.FilesDecrypted, m.EncryptionFailures, m.DecryptionFailures,
		m.SearchQueries, m.SearchRateLimited, m.SearchResultsReturned,
		m.TrapdoorsCreated, m.TrapdoorsRotated, m.TrapdoorsRevoked, m.ActiveTrapdoors,
		m.RecoveryAttempts, m.RecoverySucceeded, m.RecoveryFailed,
		m.StorageRetries,
		m.KeysRotated, m.CompromiseChecks, m.CompromiseDetections,
		m.ChunkProcessDuration, m.FileSize,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFileCreated records a successful encrypt-and-store operation.
func (m *Metrics) RecordFileCreated(size int64) {
	m.FilesCreated.Inc()
	m.FileSize.Observe(float64(size))
}

// RecordChunkProcessDuration records how long content processing took.
func (m *Metrics) RecordChunkProcessDuration(d time.Duration) {
	m.ChunkProcessDuration.Observe(d.Seconds())
}

// RecordSearchQuery records a search query and the number of results returned.
func (m *Metrics) RecordSearchQuery(results int) {
	m.SearchQueries.Inc()
	m.SearchResultsReturned.Observe(float64(results))
}

// RecordRecoveryAttempt records the outcome of a recovery attempt.
func (m *Metrics) RecordRecoveryAttempt(success bool) {
	m.RecoveryAttempts.Inc()
	if success {
		m.RecoverySucceeded.Inc()
	} else {
		m.RecoveryFailed.Inc()
	}
}
