// Package telemetry exposes prometheus collectors for searches, tasks,
// ingestion and embedding calls.
//
// All methods are safe on a nil *Metrics, so services can run without
// metrics wired in.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "peachjam"

// Task outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeRetry      = "retry"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	searches       *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec
	searchFailures *prometheus.CounterVec
	tasks          *prometheus.CounterVec
	taskLatency    *prometheus.HistogramVec
	ingestActions  *prometheus.CounterVec
	embedCalls     *prometheus.CounterVec
	embedTexts     prometheus.Counter
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches executed, by mode and query class.",
		}, []string{"mode", "class"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		searchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_index_failures_total",
			Help:      "Index failures seen while searching.",
		}, []string{"index"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Background task executions, by task name and outcome.",
		}, []string{"task", "outcome"}),
		taskLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Background task run time.",
			Buckets:   []float64{.01, .1, .5, 1, 5, 15, 60, 300, 1800},
		}, []string{"task"}),
		ingestActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_actions_total",
			Help:      "Ingestion actions, by adapter and action.",
		}, []string{"adapter", "action"}),
		embedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Calls to the embedding service, by outcome.",
		}, []string{"outcome"}),
		embedTexts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_texts_total",
			Help:      "Texts sent to the embedding service.",
		}),
	}

	m.registry.MustRegister(
		m.searches, m.searchLatency, m.searchFailures,
		m.tasks, m.taskLatency,
		m.ingestActions,
		m.embedCalls, m.embedTexts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(mode, class string, took time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode, class).Inc()
	m.searchLatency.WithLabelValues(mode).Observe(took.Seconds())
}

// SearchIndexFailed records a failed index during a search.
func (m *Metrics) SearchIndexFailed(index string) {
	if m == nil {
		return
	}
	m.searchFailures.WithLabelValues(index).Inc()
}

// ObserveTask records a task execution.
func (m *Metrics) ObserveTask(name, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(name, outcome).Inc()
	m.taskLatency.WithLabelValues(name).Observe(took.Seconds())
}

// IngestAction records an adapter action such as "update" or "delete".
func (m *Metrics) IngestAction(adapter, action string) {
	if m == nil {
		return
	}
	m.ingestActions.WithLabelValues(adapter, action).Inc()
}

// EmbeddingCall records one call to the embedding service with n texts.
func (m *Metrics) EmbeddingCall(n int, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	m.embedCalls.WithLabelValues(outcome).Inc()
	m.embedTexts.Add(float64(n))
}
