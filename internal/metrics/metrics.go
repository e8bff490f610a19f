// Package metrics exposes Prometheus instruments for sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes every metric.
	Namespace = "problemsync"
)

// Metrics holds all sync metrics. It satisfies the recorder interfaces of the
// fetcher, publisher and pipeline packages.
type Metrics struct {
	FetchAttemptsTotal *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec

	ItemsTotal          *prometheus.CounterVec
	ItemDurationSeconds prometheus.Histogram
	ItemsInFlight       prometheus.Gauge

	PublishTotal        *prometheus.CounterVec
	BlocksAppendedTotal prometheus.Counter
	ChunksAppendedTotal prometheus.Counter

	RunsTotal          *prometheus.CounterVec
	LastRunTimestamp   prometheus.Gauge
	LastRunSuccessRate prometheus.Gauge
}

// New creates and registers all metrics with reg, or the default registerer when nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initFetchMetrics(factory)
	m.initItemMetrics(factory)
	m.initPublishMetrics(factory)
	m.initRunMetrics(factory)

	return m
}

func (m *Metrics) initFetchMetrics(factory promauto.Factory) {
	m.FetchAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Source fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	m.RetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled per remote service",
		},
		[]string{"service"},
	)
}

func (m *Metrics) initItemMetrics(factory promauto.Factory) {
	m.ItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Items processed by final outcome",
		},
		[]string{"outcome"},
	)

	m.ItemDurationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "pipeline",
			Name:      "item_duration_seconds",
			Help:      "Wall time spent on one item",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2min
		},
	)

	m.ItemsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "pipeline",
			Name:      "items_in_flight",
			Help:      "Items currently being processed",
		},
	)
}

func (m *Metrics) initPublishMetrics(factory promauto.Factory) {
	m.PublishTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "publish",
			Name:      "results_total",
			Help:      "Publish results by status",
		},
		[]string{"status"},
	)

	m.BlocksAppendedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "publish",
			Name:      "blocks_appended_total",
			Help:      "Blocks appended to remote documents",
		},
	)

	m.ChunksAppendedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "publish",
			Name:      "chunks_appended_total",
			Help:      "Block chunks appended to remote documents",
		},
	)
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Sync runs by result",
		},
		[]string{"result"},
	)

	m.LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		},
	)

	m.LastRunSuccessRate = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_success_rate",
			Help:      "Fraction of items that ended without failure in the last run",
		},
	)
}

// FetchAttempt counts one source fetch attempt.
func (m *Metrics) FetchAttempt(outcome string) {
	m.FetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RetryScheduled counts a retry against service.
func (m *Metrics) RetryScheduled(service string) {
	m.RetriesTotal.WithLabelValues(service).Inc()
}

// ChunkAppended counts one appended chunk of blocks.
func (m *Metrics) ChunkAppended(blocks int) {
	m.ChunksAppendedTotal.Inc()
	m.BlocksAppendedTotal.Add(float64(blocks))
}

// ItemStarted marks an item as in flight.
func (m *Metrics) ItemStarted() {
	m.ItemsInFlight.Inc()
}

// ItemFinished records an item's outcome and duration.
func (m *Metrics) ItemFinished(outcome string, d time.Duration) {
	m.ItemsInFlight.Dec()
	m.ItemsTotal.WithLabelValues(outcome).Inc()
	m.ItemDurationSeconds.Observe(d.Seconds())
}

// Published counts one publish result.
func (m *Metrics) Published(status string) {
	m.PublishTotal.WithLabelValues(status).Inc()
}

// RunFinished records the end of a run.
func (m *Metrics) RunFinished(result string, successRate float64, at time.Time) {
	m.RunsTotal.WithLabelValues(result).Inc()
	m.LastRunSuccessRate.Set(successRate)
	m.LastRunTimestamp.Set(float64(at.Unix()))
}
