// File: internal/observability/metrics.go
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the automation core's Prometheus instruments. A nil *Metrics
// is valid and records nothing, so components never need to check.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	resolutionsTotal *prometheus.CounterVec
	scansTotal       *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	stepDuration     *prometheus.HistogramVec
	readinessWaits   *prometheus.CounterVec
	plannerRequests  *prometheus.CounterVec
}

// NewMetrics registers all instruments on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands run, by action and final plan status.",
		}, []string{"action", "status"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall time from parsing to final status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"action"}),
		resolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Element resolutions, by winning strategy (\"none\" when nothing matched).",
		}, []string{"strategy"}),
		scansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_scans_total",
			Help:      "Page analyses, by whether the cache was hit.",
		}, []string{"result"}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_scan_duration_seconds",
			Help:      "Time to snapshot and score a page.",
			Buckets:   prometheus.DefBuckets,
		}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_step_duration_seconds",
			Help:      "Plan step execution time, by step action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		readinessWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_waits_total",
			Help:      "Page readiness waits, by result.",
		}, []string{"result"}),
		plannerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planner_requests_total",
			Help:      "Natural-language planner calls, by status.",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCommand(action, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(action, status).Inc()
	m.commandDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) ObserveResolution(strategy string) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.resolutionsTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveScan(cached bool, d time.Duration) {
	if m == nil {
		return
	}
	if cached {
		m.scansTotal.WithLabelValues("cached").Inc()
		return
	}
	m.scansTotal.WithLabelValues("fresh").Inc()
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) ObserveReadiness(result string) {
	if m == nil {
		return
	}
	m.readinessWaits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePlanner(status string) {
	if m == nil {
		return
	}
	m.plannerRequests.WithLabelValues(status).Inc()
}
