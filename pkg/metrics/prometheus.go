// Package metrics provides Prometheus metrics for the checkpoint
// ingestion service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the ingestion service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Intake Metrics - Webhook accept path
	checkpointsReceived  prometheus.Counter
	checkpointsDuplicate prometheus.Counter
	dedupeEntries        prometheus.Gauge

	// Task Queue Metrics
	taskQueueSize     prometheus.Gauge
	taskQueueCapacity prometheus.Gauge
	taskSubmits       prometheus.Counter
	taskSubmitErrors  *prometheus.CounterVec
	taskConsumes      prometheus.Counter

	// Pipeline Metrics
	pipelineOutcomes *prometheus.CounterVec
	pipelineLatency  prometheus.Histogram
	workerErrors     prometheus.Counter
	workerCount      prometheus.Gauge

	// Provider Metrics - Timing, streams and clips collaborators
	providerErrors    *prometheus.CounterVec
	providerFallbacks prometheus.Counter

	// Media Metrics - Story and clip outcomes
	storiesCreated prometheus.Counter
	clipsGenerated prometheus.Counter
	clipFailures   prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crossline",
		subsystem:        "ingest",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Intake Metrics - Webhook accept path
	m.checkpointsReceived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoints_received_total",
		Help:      "Total number of checkpoint webhooks received",
	})

	m.checkpointsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "checkpoints_duplicate_total",
		Help:      "Total number of duplicate checkpoints collapsed by the dedup queue",
	})

	m.dedupeEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_entries",
		Help:      "Current number of tracked dedup queue entries",
	})

	// Task Queue Metrics
	m.taskQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_queue_size",
		Help:      "Current size of the pipeline task queue (backlog indicator)",
	})

	m.taskQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_queue_capacity",
		Help:      "Maximum task queue capacity",
	})

	m.taskSubmits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_submit_total",
		Help:      "Total number of tasks submitted to the pipeline queue",
	})

	m.taskSubmitErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "task_submit_errors_total",
			Help:      "Total number of rejected task submits by reason",
		},
		[]string{"reason"},
	)

	m.taskConsumes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_consume_total",
		Help:      "Total number of tasks handed to pipeline workers",
	})

	// Pipeline Metrics
	m.pipelineOutcomes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "pipeline_outcomes_total",
			Help:      "Total number of pipeline runs by terminal status",
		},
		[]string{"status"},
	)

	m.pipelineLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pipeline_latency_milliseconds",
		Help:      "Histogram of end-to-end pipeline latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of pipeline worker errors",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of pipeline workers (processing capacity)",
	})

	// Provider Metrics - Timing, streams and clips collaborators
	m.providerErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "provider_errors_total",
			Help:      "Total number of external provider errors by provider and kind",
		},
		[]string{"provider", "kind"},
	)

	m.providerFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_fallbacks_total",
		Help:      "Total number of pipeline runs degraded to a fallback participant",
	})

	// Media Metrics - Story and clip outcomes
	m.storiesCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stories_created_total",
		Help:      "Total number of stories created",
	})

	m.clipsGenerated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clips_generated_total",
		Help:      "Total number of clips generated",
	})

	m.clipFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clip_failures_total",
		Help:      "Total number of failed clip generations recorded on stories",
	})

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// Intake Metrics Functions.

// RecordCheckpointReceived increments the received checkpoints counter.
func RecordCheckpointReceived() {
	globalManager.checkpointsReceived.Inc()
}

// RecordCheckpointDuplicate increments the duplicate checkpoints counter.
func RecordCheckpointDuplicate() {
	globalManager.checkpointsDuplicate.Inc()
}

// UpdateDedupeEntries sets the current dedup entry count.
func UpdateDedupeEntries(count int) {
	globalManager.dedupeEntries.Set(float64(count))
}

// Task Queue Metrics Functions.

// UpdateTaskQueueSize sets the current task queue size.
func UpdateTaskQueueSize(size int) {
	globalManager.taskQueueSize.Set(float64(size))
}

// UpdateTaskQueueCapacity sets the task queue capacity.
func UpdateTaskQueueCapacity(capacity int) {
	globalManager.taskQueueCapacity.Set(float64(capacity))
}

// RecordTaskSubmit increments the task submit counter.
func RecordTaskSubmit() {
	globalManager.taskSubmits.Inc()
}

// RecordTaskSubmitError increments the rejected submit counter for a reason.
func RecordTaskSubmitError(reason string) {
	globalManager.taskSubmitErrors.WithLabelValues(reason).Inc()
}

// RecordTaskConsume increments the task consume counter.
func RecordTaskConsume() {
	globalManager.taskConsumes.Inc()
}

// Pipeline Metrics Functions.

// RecordPipelineOutcome increments the pipeline outcome counter for a
// terminal status.
func RecordPipelineOutcome(status string) {
	globalManager.pipelineOutcomes.WithLabelValues(status).Inc()
}

// RecordPipelineLatency records end-to-end pipeline latency in milliseconds.
func RecordPipelineLatency(latencyMs float64) {
	globalManager.pipelineLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// Provider Metrics Functions.

// RecordProviderError records an external provider error.
func RecordProviderError(provider, kind string) {
	globalManager.providerErrors.WithLabelValues(provider, kind).Inc()
}

// RecordProviderFallback increments the fallback participant counter.
func RecordProviderFallback() {
	globalManager.providerFallbacks.Inc()
}

// Media Metrics Functions.

// RecordStoryCreated increments the stories created counter.
func RecordStoryCreated() {
	globalManager.storiesCreated.Inc()
}

// RecordClipGenerated increments the clips generated counter.
func RecordClipGenerated() {
	globalManager.clipsGenerated.Inc()
}

// RecordClipFailure increments the failed clip generation counter.
func RecordClipFailure() {
	globalManager.clipFailures.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
