// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package performance

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace       = "loadtest"
	metricsSubSystemHTTP   = "http"
	metricsSubSystemStep   = "step"
	metricsSubSystemEngine = "engine"
	metricsSubSystemSystem = "system"
)

// ExecutorMetrics are updated by the step executor.
type ExecutorMetrics struct {
	HTTPRequestTimes prometheus.Histogram
	HTTPErrors       *prometheus.CounterVec
	HTTPTimeouts     *prometheus.CounterVec
	StepTimes        *prometheus.HistogramVec
	StepErrors       *prometheus.CounterVec
}

// EngineMetrics are updated by the engine and its scheduler.
type EngineMetrics struct {
	RunsStarted        prometheus.Counter
	RunsFinished       *prometheus.CounterVec
	ActiveRuns         prometheus.Gauge
	ScenarioExecutions *prometheus.CounterVec
	InflightExecutions prometheus.Gauge
	CPUUsagePercent    prometheus.Gauge
	MemoryUsagePercent prometheus.Gauge
	NetworkLatencyMs   prometheus.Gauge
}

type Metrics struct {
	registry  *prometheus.Registry
	exMetrics ExecutorMetrics
	enMetrics EngineMetrics
}

func NewMetrics() *Metrics {
	var m Metrics
	m.registry = prometheus.NewRegistry()

	m.exMetrics.HTTPRequestTimes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemHTTP,
		Name:      "request_time",
		Help:      "The time taken to execute api_call requests.",
	})
	m.registry.MustRegister(m.exMetrics.HTTPRequestTimes)

	m.exMetrics.HTTPErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemHTTP,
		Name:      "errors_total",
		Help:      "The total number of api_call responses with an unexpected status.",
	},
		[]string{"path", "method", "status_code"})
	m.registry.MustRegister(m.exMetrics.HTTPErrors)

	m.exMetrics.HTTPTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemHTTP,
		Name:      "timeouts_total",
		Help:      "The total number of api_call timeouts.",
	},
		[]string{"path", "method"})
	m.registry.MustRegister(m.exMetrics.HTTPTimeouts)

	m.exMetrics.StepTimes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemStep,
		Name:      "duration_seconds",
		Help:      "The time taken to execute a step.",
	},
		[]string{"action"})
	m.registry.MustRegister(m.exMetrics.StepTimes)

	m.exMetrics.StepErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemStep,
		Name:      "errors_total",
		Help:      "The total number of failed steps.",
	},
		[]string{"action", "error_type"})
	m.registry.MustRegister(m.exMetrics.StepErrors)

	m.enMetrics.RunsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemEngine,
		Name:      "runs_started_total",
		Help:      "The total number of started runs.",
	})
	m.registry.MustRegister(m.enMetrics.RunsStarted)

	m.enMetrics.RunsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemEngine,
		Name:      "runs_finished_total",
		Help:      "The total number of finished runs by final status.",
	},
		[]string{"status"})
	m.registry.MustRegister(m.enMetrics.RunsFinished)

	m.enMetrics.ActiveRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemEngine,
		Name:      "active_runs",
		Help:      "The number of runs currently executing.",
	})
	m.registry.MustRegister(m.enMetrics.ActiveRuns)

	m.enMetrics.ScenarioExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemEngine,
		Name:      "scenario_executions_total",
		Help:      "The total number of dispatched scenario executions.",
	},
		[]string{"scenario"})
	m.registry.MustRegister(m.enMetrics.ScenarioExecutions)

	m.enMetrics.InflightExecutions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemEngine,
		Name:      "inflight_executions",
		Help:      "The number of scenario executions currently running.",
	})
	m.registry.MustRegister(m.enMetrics.InflightExecutions)

	m.enMetrics.CPUUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemSystem,
		Name:      "cpu_usage_percent",
		Help:      "The last sampled CPU usage estimate.",
	})
	m.registry.MustRegister(m.enMetrics.CPUUsagePercent)

	m.enMetrics.MemoryUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemSystem,
		Name:      "memory_usage_percent",
		Help:      "The last sampled memory usage.",
	})
	m.registry.MustRegister(m.enMetrics.MemoryUsagePercent)

	m.enMetrics.NetworkLatencyMs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubSystemSystem,
		Name:      "network_latency_ms",
		Help:      "The last sampled network probe latency.",
	})
	m.registry.MustRegister(m.enMetrics.NetworkLatencyMs)

	return &m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ExecutorMetrics() *ExecutorMetrics {
	return &m.exMetrics
}

func (m *Metrics) EngineMetrics() *EngineMetrics {
	return &m.enMetrics
}
