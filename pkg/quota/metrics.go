package quota

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the quota package.
type Metrics struct {
	// Limit checks
	checks    *prometheus.CounterVec
	limitHits prometheus.Counter

	// Record outcomes
	records *prometheus.CounterVec

	// Pending queue
	pendingRecords   prometheus.Gauge
	flushedRecords   prometheus.Counter
	abandonedRecords prometheus.Counter

	// Check latency
	checkDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// sharedMetrics returns the process-wide Metrics instance. Collectors are
// registered with the default registry exactly once regardless of how many
// services are constructed.
func sharedMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

// newMetrics creates a Metrics instance with Prometheus collectors.
func newMetrics() *Metrics {
	return &Metrics{
		checks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_quota_checks_total",
				Help: "Total number of quota checks performed",
			},
			[]string{"result"},
		),

		limitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_quota_limit_hits_total",
				Help: "Total number of checks denied, including fail-closed denials",
			},
		),

		records: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_quota_records_total",
				Help: "Total number of record attempts by outcome",
			},
			[]string{"outcome"},
		),

		pendingRecords: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ganymede_quota_pending_records",
				Help: "Current number of records awaiting flush",
			},
		),

		flushedRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_quota_flushed_records_total",
				Help: "Total number of pending records delivered by background flushes",
			},
		),

		abandonedRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_quota_abandoned_records_total",
				Help: "Total number of pending records dropped after the retry cap",
			},
		),

		checkDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ganymede_quota_check_duration_seconds",
				Help:    "Duration of quota checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
			},
		),
	}
}

// RecordCheck records a quota check outcome. failClosed marks denials caused
// by backend failures rather than an actual exhausted quota.
func (m *Metrics) RecordCheck(allowed bool, failClosed bool) {
	result := "allowed"
	switch {
	case failClosed:
		result = "fail_closed"
	case !allowed:
		result = "denied"
	}
	m.checks.WithLabelValues(result).Inc()
	if !allowed || failClosed {
		m.limitHits.Inc()
	}
}

// RecordOutcome records the outcome of a RecordReliable call
// ("recorded", "queued", or "invalid").
func (m *Metrics) RecordOutcome(outcome string) {
	m.records.WithLabelValues(outcome).Inc()
}

// RecordFlush records the results of one flush pass.
func (m *Metrics) RecordFlush(flushed, abandoned int) {
	m.flushedRecords.Add(float64(flushed))
	m.abandonedRecords.Add(float64(abandoned))
}

// SetPendingRecords updates the pending-queue depth gauge.
func (m *Metrics) SetPendingRecords(n int) {
	m.pendingRecords.Set(float64(n))
}

// ObserveCheckDuration records the duration of a quota check in seconds.
func (m *Metrics) ObserveCheckDuration(seconds float64) {
	m.checkDuration.Observe(seconds)
}
