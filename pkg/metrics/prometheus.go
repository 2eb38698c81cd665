// Package metrics provides Prometheus metrics for the GM assignment service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets are in milliseconds, the unit every latency series uses.
var defaultLatencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // read-only bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Assignment engine
	decisions        *prometheus.CounterVec
	ineligible       *prometheus.CounterVec
	decisionLatency  prometheus.Histogram
	eligibleCount    prometheus.Histogram
	gameCacheLookups *prometheus.CounterVec
	malformedRecords *prometheus.CounterVec

	// Batch job
	batchRuns     prometheus.Counter
	batchOutcomes *prometheus.CounterVec
	batchDuration prometheus.Histogram

	// Notifications
	notifications   *prometheus.CounterVec
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	workerCount     prometheus.Gauge
	sendLatency     prometheus.Histogram
	queueRejections *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
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
		namespace:        "gmassign",
		subsystem:        "engine",
		histogramBuckets: defaultLatencyBuckets,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.decisions = auto.NewCounterVec(
		m.counterOpts("decisions_total", "Assignment decisions by outcome (assigned, no_candidate, candidates, error)"),
		[]string{"outcome"},
	)
	m.ineligible = auto.NewCounterVec(
		m.counterOpts("ineligible_total", "GM evaluations rejected, by reason code"),
		[]string{"reason"},
	)
	m.decisionLatency = auto.NewHistogram(
		m.histogramOpts("decision_latency_milliseconds", "Time to evaluate a roster for one event", m.histogramBuckets),
	)
	m.eligibleCount = auto.NewHistogram(
		m.histogramOpts("eligible_candidates", "Number of eligible GMs per decision", []float64{0, 1, 2, 3, 5, 8, 13, 21}),
	)
	m.gameCacheLookups = auto.NewCounterVec(
		m.counterOpts("game_cache_lookups_total", "Game mapping cache lookups by result (hit, miss)"),
		[]string{"result"},
	)
	m.malformedRecords = auto.NewCounterVec(
		m.counterOpts("malformed_records_total", "Records skipped because a time string could not be parsed"),
		[]string{"kind"},
	)

	m.batchRuns = auto.NewCounter(m.counterOpts("batch_runs_total", "Batch auto-assignment runs"))
	m.batchOutcomes = auto.NewCounterVec(
		m.counterOpts("batch_outcomes_total", "Per-event batch outcomes (assigned, skipped, failed)"),
		[]string{"status"},
	)
	m.batchDuration = auto.NewHistogram(
		m.histogramOpts("batch_duration_milliseconds", "Duration of a batch run", []float64{10, 50, 100, 500, 1000, 5000, 30000}),
	)

	m.notifications = auto.NewCounterVec(
		m.counterOpts("notifications_total", "Assignment notifications by status (sent, failed, duplicate)"),
		[]string{"status"},
	)
	m.queueSize = auto.NewGauge(m.gaugeOpts("notification_queue_size", "Current size of the notification queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("notification_queue_capacity", "Capacity of the notification queue"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("notification_workers", "Number of notification workers"))
	m.sendLatency = auto.NewHistogram(
		m.histogramOpts("notification_send_latency_milliseconds", "Latency of email provider calls", m.histogramBuckets),
	)
	m.queueRejections = auto.NewCounterVec(
		m.counterOpts("notification_queue_rejections_total", "Notices rejected by the queue, by reason"),
		[]string{"reason"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordDecision counts a decision outcome.
func RecordDecision(outcome string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.decisions.WithLabelValues(outcome).Inc()
}

// RecordIneligible counts a rejected GM evaluation.
func RecordIneligible(reason string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.ineligible.WithLabelValues(reason).Inc()
}

// RecordDecisionLatency observes roster evaluation time.
func RecordDecisionLatency(latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.decisionLatency.Observe(latencyMs)
}

// RecordEligibleCount observes the size of an eligible set.
func RecordEligibleCount(n int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.eligibleCount.Observe(float64(n))
}

// RecordGameCacheLookup counts a resolver cache hit or miss.
func RecordGameCacheLookup(hit bool) {
	if !globalManager.enabled.Load() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.gameCacheLookups.WithLabelValues(result).Inc()
}

// RecordMalformedRecord counts a skipped record of the given kind.
func RecordMalformedRecord(kind string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.malformedRecords.WithLabelValues(kind).Inc()
}

// RecordBatchRun counts a batch run and its duration.
func RecordBatchRun(duration time.Duration) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.batchRuns.Inc()
	globalManager.batchDuration.Observe(float64(duration.Milliseconds()))
}

// RecordBatchOutcome counts a per-event batch outcome.
func RecordBatchOutcome(status string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.batchOutcomes.WithLabelValues(status).Inc()
}

// RecordNotification counts a notification by status.
func RecordNotification(status string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.notifications.WithLabelValues(status).Inc()
}

// RecordSendLatency observes an email provider call.
func RecordSendLatency(latencyMs float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.sendLatency.Observe(latencyMs)
}

// RecordQueueRejection counts a notice the queue refused.
func RecordQueueRejection(reason string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueRejections.WithLabelValues(reason).Inc()
}

// UpdateQueueSize sets the notification queue size gauge.
func UpdateQueueSize(size int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the notification queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the notification worker gauge.
func UpdateWorkerCount(count int) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled.Load() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// SetEnabled switches recording on or off for the global manager.
func SetEnabled(on bool) {
	globalManager.enabled.Store(on)
}

// Enabled reports whether the global manager records.
func Enabled() bool {
	return globalManager.enabled.Load()
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
