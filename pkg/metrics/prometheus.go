// Package metrics provides Prometheus metrics for the toprank ranking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking recomputation
	replaceTotal       *prometheus.CounterVec
	replaceDuration    prometheus.Histogram
	rowsWritten        prometheus.Counter
	offlineRowsMerged  prometheus.Counter
	insertChunks       prometheus.Counter
	metricGroups       prometheus.Gauge
	tableRows          prometheus.Gauge
	lastReplaceUnix    prometheus.Gauge
	privilegedExcluded prometheus.Gauge

	// Store
	storeQueryLatency *prometheus.HistogramVec

	// Submissions
	batchesSubmitted prometheus.Counter
	batchesDuplicate prometheus.Counter

	// Queue
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	queueWaitLatency prometheus.Histogram

	// Workers
	workerCount      prometheus.Gauge
	workerJobLatency prometheus.Histogram
	workerErrors     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide collectors

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "toprank",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.replaceTotal = m.counterVec("replace_total", "Ranking table replacements by outcome", "outcome")
	m.replaceDuration = m.histogram("replace_duration_milliseconds", "Duration of a full ranking replace in milliseconds")
	m.rowsWritten = m.counter("rows_written_total", "Ranking rows written by replace")
	m.offlineRowsMerged = m.counter("offline_rows_merged_total", "Previously persisted rows merged back into a replace")
	m.insertChunks = m.counter("insert_chunks_total", "Batch insert calls issued against the store")
	m.metricGroups = m.gauge("metric_groups", "Metric groups touched by the last replace")
	m.tableRows = m.gauge("table_rows", "Rows in the ranking table after the last replace")
	m.lastReplaceUnix = m.gauge("last_replace_unix", "Unix timestamp of the last successful replace")
	m.privilegedExcluded = m.gauge("privileged_excluded", "Privileged player ids excluded by the last replace")

	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Store operation latency in milliseconds", "operation")

	m.batchesSubmitted = m.counter("batches_submitted_total", "Batches accepted for recomputation")
	m.batchesDuplicate = m.counter("batches_duplicate_total", "Batches rejected as duplicates by batch id")

	m.queueCapacity = m.gauge("queue_capacity", "Maximum replace queue capacity")
	m.queueSize = m.gauge("queue_size", "Current replace queue length")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueRejected = m.counterVec("queue_rejected_total", "Jobs rejected by the queue", "reason")
	m.queueWaitLatency = m.histogram("queue_wait_milliseconds", "Time a job spent queued in milliseconds")

	m.workerCount = m.gauge("worker_count", "Replace workers running")
	m.workerJobLatency = m.histogram("worker_job_latency_milliseconds", "Worker job latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Worker jobs that failed")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordReplace records the outcome of a replace and its duration.
func RecordReplace(outcome string, d time.Duration) {
	globalManager.replaceTotal.WithLabelValues(outcome).Inc()
	globalManager.replaceDuration.Observe(float64(d.Milliseconds()))
}

// RecordReplaceResult updates the gauges describing the freshly written table.
func RecordReplaceResult(groups, rows, offline, privileged int) {
	globalManager.metricGroups.Set(float64(groups))
	globalManager.tableRows.Set(float64(rows))
	globalManager.rowsWritten.Add(float64(rows))
	globalManager.offlineRowsMerged.Add(float64(offline))
	globalManager.privilegedExcluded.Set(float64(privileged))
	globalManager.lastReplaceUnix.Set(float64(time.Now().Unix()))
}

// RecordInsertChunk increments the batch insert counter.
func RecordInsertChunk() {
	globalManager.insertChunks.Inc()
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(operation string, d time.Duration) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(float64(d.Milliseconds()))
}

// RecordBatchSubmitted increments the accepted batch counter.
func RecordBatchSubmitted() {
	globalManager.batchesSubmitted.Inc()
}

// RecordBatchDuplicate increments the duplicate batch counter.
func RecordBatchDuplicate() {
	globalManager.batchesDuplicate.Inc()
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter and observes queue wait time.
func RecordQueueDequeue(wait time.Duration) {
	globalManager.queueDequeued.Inc()
	globalManager.queueWaitLatency.Observe(float64(wait.Milliseconds()))
}

// RecordQueueRejected increments the rejection counter for reason.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the running worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerJob observes a worker job latency.
func RecordWorkerJob(d time.Duration) {
	globalManager.workerJobLatency.Observe(float64(d.Milliseconds()))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry backing the global collectors.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
