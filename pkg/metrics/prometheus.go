// Package metrics provides Prometheus metrics for the payday payout service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Manager manages all Prometheus metrics for the payday service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Payout resolution
	payoutsResolved   *prometheus.CounterVec
	payoutsSkipped    *prometheus.CounterVec
	amountAwarded     prometheus.Counter
	unresolvableTies  prometheus.Counter
	duplicateConflict prometheus.Counter

	// League cycles
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	refreshes       *prometheus.CounterVec
	leaguesInFlight prometheus.Gauge

	// Ranking cache
	rankingCacheHits   prometheus.Counter
	rankingCacheMisses prometheus.Counter

	// Queue Metrics - league job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics - Processing performance
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Metrics - ops endpoints
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "payday",
		subsystem:        "payouts",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.payoutsResolved = m.counterVec("resolved_total",
		"Payouts resolved by outcome (single_winner, split, deferred)", "outcome")
	m.payoutsSkipped = m.counterVec("skipped_total",
		"Payouts left unresolved in a cycle by reason", "reason")
	m.amountAwarded = m.counter("amount_awarded_total",
		"Sum of payout amounts assigned to winners")
	m.unresolvableTies = m.counter("unresolvable_ties_total",
		"Cycles aborted by a tie spanning several positions")
	m.duplicateConflict = m.counter("duplicate_conflicts_total",
		"Resolutions rejected by the one-winner-per-position constraint")

	m.cycles = m.counterVec("cycles_total",
		"League cycles by result (ok, aborted, error)", "result")
	m.cycleDuration = m.histogram("cycle_duration_milliseconds",
		"Duration of one league cycle in milliseconds")
	m.refreshes = m.counterVec("refreshes_total",
		"League data refreshes by result (ok, error, fresh)", "result")
	m.leaguesInFlight = m.gauge("leagues_in_flight",
		"Leagues currently being processed")

	m.rankingCacheHits = m.counter("ranking_cache_hits_total",
		"Ranking snapshots served from cache")
	m.rankingCacheMisses = m.counter("ranking_cache_misses_total",
		"Ranking snapshots computed from league data")

	m.queueSize = m.gauge("queue_size", "Current number of queued league jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of league jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of league jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers processing a league")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker job latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of failed league jobs")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordPayoutResolved counts one resolution and the money it assigned.
func (m *Manager) RecordPayoutResolved(outcome string, awarded decimal.Decimal) {
	m.payoutsResolved.WithLabelValues(outcome).Inc()
	if f, _ := awarded.Float64(); f > 0 {
		m.amountAwarded.Add(f)
	}
}

// RecordPayoutSkipped counts a payout left for a later cycle.
func (m *Manager) RecordPayoutSkipped(reason string) {
	m.payoutsSkipped.WithLabelValues(reason).Inc()
}

// RecordUnresolvableTie counts an aborted cycle.
func (m *Manager) RecordUnresolvableTie() { m.unresolvableTies.Inc() }

// RecordDuplicateConflict counts a rejected duplicate winner.
func (m *Manager) RecordDuplicateConflict() { m.duplicateConflict.Inc() }

// RecordCycle counts a finished league cycle and its duration.
func (m *Manager) RecordCycle(result string, durationMs float64) {
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(durationMs)
}

// RecordRefresh counts a refresh attempt.
func (m *Manager) RecordRefresh(result string) {
	m.refreshes.WithLabelValues(result).Inc()
}

// AddLeaguesInFlight moves the in-flight gauge by delta.
func (m *Manager) AddLeaguesInFlight(delta int) { m.leaguesInFlight.Add(float64(delta)) }

// RecordRankingCache counts a cache lookup.
func (m *Manager) RecordRankingCache(hit bool) {
	if hit {
		m.rankingCacheHits.Inc()
		return
	}
	m.rankingCacheMisses.Inc()
}

// RecordPayoutResolved counts one resolution on the global manager.
func RecordPayoutResolved(outcome string, awarded decimal.Decimal) {
	globalManager.RecordPayoutResolved(outcome, awarded)
}

// RecordPayoutSkipped counts a skipped payout on the global manager.
func RecordPayoutSkipped(reason string) { globalManager.RecordPayoutSkipped(reason) }

// RecordUnresolvableTie counts an aborted cycle on the global manager.
func RecordUnresolvableTie() { globalManager.RecordUnresolvableTie() }

// RecordDuplicateConflict counts a duplicate winner on the global manager.
func RecordDuplicateConflict() { globalManager.RecordDuplicateConflict() }

// RecordCycle counts a league cycle on the global manager.
func RecordCycle(result string, durationMs float64) { globalManager.RecordCycle(result, durationMs) }

// RecordRefresh counts a refresh on the global manager.
func RecordRefresh(result string) { globalManager.RecordRefresh(result) }

// AddLeaguesInFlight moves the global in-flight gauge.
func AddLeaguesInFlight(delta int) { globalManager.AddLeaguesInFlight(delta) }

// RecordRankingCache counts a cache lookup on the global manager.
func RecordRankingCache(hit bool) { globalManager.RecordRankingCache(hit) }

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
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

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive moves the active worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest counts a request and observes its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Configure rebuilds the global manager on a fresh registry with opts.
// Call it once at startup, before any metric is recorded.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
