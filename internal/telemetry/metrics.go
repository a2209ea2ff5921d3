package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	tasks         *prometheus.CounterVec
	tasksInFlight prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	glpiRequests  *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
	uploads       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glpisum",
			Name:      "webhook_requests_total",
			Help:      "Webhook requests by outcome (dispatched, ignored, invalid).",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glpisum",
			Name:      "tasks_total",
			Help:      "Background ticket tasks by result.",
		}, []string{"result"}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "glpisum",
			Name:      "tasks_in_flight",
			Help:      "Background ticket tasks currently running.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glpisum",
			Name:      "task_stage_duration_seconds",
			Help:      "Duration of each task stage (fetch, summarize, render, upload).",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		glpiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glpisum",
			Name:      "glpi_requests_total",
			Help:      "GLPI REST calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glpisum",
			Name:      "llm_calls_total",
			Help:      "Embedding and generation calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glpisum",
			Name:      "uploads_total",
			Help:      "Report uploads by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.webhookEvents, m.tasks, m.tasksInFlight, m.stageDuration, m.glpiRequests, m.llmCalls, m.uploads} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) WebhookRequest(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksInFlight.Inc()
}

func (m *Metrics) TaskFinished(result string) {
	if m == nil {
		return
	}
	m.tasksInFlight.Dec()
	m.tasks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) GLPIRequest(operation string, err error) {
	if m == nil {
		return
	}
	m.glpiRequests.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *Metrics) LLMCall(kind string, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(kind, outcome(err)).Inc()
}

func (m *Metrics) Upload(err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome(err)).Inc()
}
