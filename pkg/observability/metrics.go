package observability

import (
	"context"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aituberflow"

// Metrics counts runs, node transitions, log levels and artifacts.
type Metrics struct {
	runsStarted  *prometheus.CounterVec
	runsStopped  *prometheus.CounterVec
	runsActive   prometheus.Gauge
	nodeStatus   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	logs         *prometheus.CounterVec
	artifacts    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Runs that completed setup and started executing.",
		}, []string{"graph_id"}),
		runsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_stopped_total",
			Help:      "Runs that were stopped.",
		}, []string{"graph_id"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently executing.",
		}),
		nodeStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_status_total",
			Help:      "Node status transitions by node type and status.",
		}, []string{"node_type", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of pull node executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"node_type", "status"}),
		logs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_events_total",
			Help:      "Log events reported by nodes and runs.",
		}, []string{"level"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Artifacts emitted by nodes.",
		}, []string{"artifact"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runsStarted, m.runsStopped, m.runsActive, m.nodeStatus, m.nodeDuration, m.logs, m.artifacts}
}

func (m *Metrics) OnEvent(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventExecutionStarted:
		m.runsStarted.WithLabelValues(ev.GraphID).Inc()
		m.runsActive.Inc()
	case domain.EventExecutionStopped:
		m.runsStopped.WithLabelValues(ev.GraphID).Inc()
		m.runsActive.Dec()
	case domain.EventNodeStatus:
		m.nodeStatus.WithLabelValues(ev.NodeType, string(ev.Status)).Inc()
		if ev.Status == domain.StatusSucceeded || ev.Status == domain.StatusFailed {
			m.nodeDuration.WithLabelValues(ev.NodeType, string(ev.Status)).Observe(ev.Duration / 1000)
		}
	case domain.EventLog:
		m.logs.WithLabelValues(string(ev.Level)).Inc()
	case domain.EventArtifact:
		m.artifacts.WithLabelValues(ev.Artifact).Inc()
	}
}
