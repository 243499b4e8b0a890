package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the scoring pipeline
type Metrics struct {
	// Capture and assembly metrics
	SegmentsCaptured prometheus.Counter
	SegmentDuration  prometheus.Histogram
	ArtifactsMerged  prometheus.Counter
	ArtifactSize     prometheus.Histogram

	// Compression metrics
	CompressionsPerformed prometheus.Counter
	CompressionFallbacks  prometheus.Counter
	CompressionRatio      prometheus.Histogram

	// Submission metrics
	SubmissionRequests  prometheus.Counter
	SubmissionSuccesses prometheus.Counter
	SubmissionFailures  prometheus.Counter
	SubmissionDuration  prometheus.Histogram
	SubmissionRetries   prometheus.Counter

	// Storage metrics
	ArtifactsStored prometheus.Counter
	StoredArtifacts prometheus.Gauge

	// Rate limiting metrics
	RateLimitRejections prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture and assembly metrics
		SegmentsCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_segments_captured_total",
			Help: "Total number of answer segments captured",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorespoken_segment_duration_seconds",
			Help:    "Estimated duration of captured answer segments",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~8 minutes
		}),
		ArtifactsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_artifacts_merged_total",
			Help: "Total number of merged answer artifacts produced",
		}),
		ArtifactSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorespoken_artifact_size_bytes",
			Help:    "Size of merged answer artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~16MB
		}),

		// Compression metrics
		CompressionsPerformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_compressions_total",
			Help: "Total number of artifacts run through the compressor",
		}),
		CompressionFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_compression_fallbacks_total",
			Help: "Total number of compressions that fell back to raw bytes",
		}),
		CompressionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorespoken_compression_ratio",
			Help:    "Compressed size divided by original size",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Submission metrics
		SubmissionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_submission_requests_total",
			Help: "Total number of scoring submissions started",
		}),
		SubmissionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_submission_successes_total",
			Help: "Total number of scoring submissions that succeeded",
		}),
		SubmissionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_submission_failures_total",
			Help: "Total number of scoring submissions that failed all attempts",
		}),
		SubmissionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scorespoken_submission_duration_seconds",
			Help:    "Duration of scoring submissions including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		SubmissionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_submission_retries_total",
			Help: "Total number of scoring submission retry attempts",
		}),

		// Storage metrics
		ArtifactsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_artifacts_stored_total",
			Help: "Total number of artifacts written to storage",
		}),
		StoredArtifacts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scorespoken_stored_artifacts",
			Help: "Current number of artifacts in storage",
		}),

		// Rate limiting metrics
		RateLimitRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scorespoken_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorespoken_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scorespoken_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scorespoken_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSegmentCaptured records one captured answer segment
func (m *Metrics) RecordSegmentCaptured(durationSeconds float64) {
	m.SegmentsCaptured.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordArtifactMerged records a merged artifact and its size
func (m *Metrics) RecordArtifactMerged(sizeBytes int) {
	m.ArtifactsMerged.Inc()
	m.ArtifactSize.Observe(float64(sizeBytes))
}

// RecordCompression records one compression pass
func (m *Metrics) RecordCompression(ratio float64, fellBack bool) {
	m.CompressionsPerformed.Inc()
	m.CompressionRatio.Observe(ratio)
	if fellBack {
		m.CompressionFallbacks.Inc()
	}
}

// RecordSubmissionRequest increments the submissions started counter
func (m *Metrics) RecordSubmissionRequest() {
	m.SubmissionRequests.Inc()
}

// RecordSubmissionSuccess records a successful submission
func (m *Metrics) RecordSubmissionSuccess(durationSeconds float64) {
	m.SubmissionSuccesses.Inc()
	m.SubmissionDuration.Observe(durationSeconds)
}

// RecordSubmissionFailure records a submission that exhausted its attempts
func (m *Metrics) RecordSubmissionFailure(durationSeconds float64) {
	m.SubmissionFailures.Inc()
	m.SubmissionDuration.Observe(durationSeconds)
}

// RecordSubmissionRetry increments the retry counter
func (m *Metrics) RecordSubmissionRetry() {
	m.SubmissionRetries.Inc()
}

// RecordArtifactStored records a storage write and the new store size
func (m *Metrics) RecordArtifactStored(totalStored int) {
	m.ArtifactsStored.Inc()
	m.StoredArtifacts.Set(float64(totalStored))
}

// RecordRateLimitRejection increments the rejection counter
func (m *Metrics) RecordRateLimitRejection() {
	m.RateLimitRejections.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
