// Package telemetry holds the Prometheus collectors shared by the integrations and use cases
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for kommunekamp
type Metrics struct {
	registry *prometheus.Registry

	Comparisons       *prometheus.CounterVec
	MetricUnavailable *prometheus.CounterVec
	UpstreamDuration  *prometheus.HistogramVec
	Reports           *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Comparisons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kommunekamp_comparisons_total",
				Help: "Total number of comparisons by outcome",
			},
			[]string{"outcome"},
		),

		MetricUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kommunekamp_metric_unavailable_total",
				Help: "Derived metrics that could not be computed, by attribute",
			},
			[]string{"attribute"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kommunekamp_upstream_request_duration_seconds",
				Help:    "Duration of calls to external services in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"service", "result"},
		),

		Reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kommunekamp_reports_total",
				Help: "Report generation requests by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.Comparisons,
		m.MetricUnavailable,
		m.UpstreamDuration,
		m.Reports,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveUpstream records the duration of an external call. Safe on a nil receiver.
func (m *Metrics) ObserveUpstream(service string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpstreamDuration.WithLabelValues(service, result).Observe(time.Since(start).Seconds())
}

// CountComparison increments the comparison counter. Safe on a nil receiver.
func (m *Metrics) CountComparison(outcome string) {
	if m == nil {
		return
	}
	m.Comparisons.WithLabelValues(outcome).Inc()
}

// CountUnavailable increments the unavailable-metric counter. Safe on a nil receiver.
func (m *Metrics) CountUnavailable(attribute string) {
	if m == nil {
		return
	}
	m.MetricUnavailable.WithLabelValues(attribute).Inc()
}

// CountReport increments the report counter. Safe on a nil receiver.
func (m *Metrics) CountReport(result string) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(result).Inc()
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
