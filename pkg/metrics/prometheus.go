package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds. Model invocations are seconds long,
// so the default second-based buckets are rescaled.
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000} //nolint:gochecknoglobals // constant slice

// Manager manages all Prometheus metrics for the arena service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Arena
	battlesCreated    prometheus.Counter
	battlesExecuted   *prometheus.CounterVec
	invocationLatency *prometheus.HistogramVec
	votesSubmitted    *prometheus.CounterVec
	ratingUpdates     prometheus.Counter
	totalModels       prometheus.Gauge
	leaderboardCache  *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		histogramBuckets: defaultBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.battlesCreated = auto.NewCounter(m.counterOpts("battles_created_total", "Total number of battles created"))
	m.battlesExecuted = auto.NewCounterVec(
		m.counterOpts("battles_executed_total", "Total number of battle executions by result"),
		[]string{"status"},
	)
	m.invocationLatency = auto.NewHistogramVec(
		m.histogramOpts("model_invocation_latency_milliseconds", "Latency of a single model invocation in milliseconds"),
		[]string{"provider", "status"},
	)
	m.votesSubmitted = auto.NewCounterVec(
		m.counterOpts("votes_submitted_total", "Total number of votes settled by outcome"),
		[]string{"outcome"},
	)
	m.ratingUpdates = auto.NewCounter(m.counterOpts("rating_updates_total", "Total number of model rating updates applied"))
	m.totalModels = auto.NewGauge(m.gaugeOpts("models_total", "Number of models in the catalog"))
	m.leaderboardCache = auto.NewCounterVec(
		m.counterOpts("leaderboard_cache_total", "Leaderboard cache lookups by result"),
		[]string{"result"},
	)

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds"),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the execution queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Total number of enqueue errors"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time a job waited in the queue in milliseconds"),
	)

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of active workers"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Number of idle workers"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gaugeOpts("worker_jobs_per_second", "Average jobs processed per second by workers"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds"),
	)
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	gc := m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds")
	gc.Buckets = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}
	m.systemGCPauseTime = auto.NewHistogram(gc)
}

// RecordBattleCreated increments the battles created counter.
func RecordBattleCreated() {
	globalManager.battlesCreated.Inc()
}

// RecordBattleExecuted counts a finished execution; status is "completed" or "error".
func RecordBattleExecuted(status string) {
	globalManager.battlesExecuted.WithLabelValues(status).Inc()
}

// RecordInvocationLatency records one model invocation.
func RecordInvocationLatency(provider, status string, latencyMs float64) {
	globalManager.invocationLatency.WithLabelValues(provider, status).Observe(latencyMs)
}

// RecordVote counts a settled vote by outcome ("win" or "draw").
func RecordVote(outcome string) {
	globalManager.votesSubmitted.WithLabelValues(outcome).Inc()
}

// RecordRatingUpdates adds n applied rating changes.
func RecordRatingUpdates(n int) {
	globalManager.ratingUpdates.Add(float64(n))
}

// UpdateTotalModels sets the catalog size.
func UpdateTotalModels(count int) {
	globalManager.totalModels.Set(float64(count))
}

// RecordCacheHit counts a leaderboard cache hit.
func RecordCacheHit() {
	globalManager.leaderboardCache.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a leaderboard cache miss.
func RecordCacheMiss() {
	globalManager.leaderboardCache.WithLabelValues("miss").Inc()
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average jobs processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

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

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
