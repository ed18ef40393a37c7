// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Metrics façade for reporter. Registering the same metric twice
// returns the existing one. Metric names are prefixed with the name of
// the calling package.

package reporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

type (
	// CounterOpts defines options for counters
	CounterOpts = prometheus.CounterOpts
	// GaugeOpts defines options for gauges
	GaugeOpts = prometheus.GaugeOpts
	// HistogramOpts defines options for histograms
	HistogramOpts = prometheus.HistogramOpts
	// SummaryOpts defines options for summaries
	SummaryOpts = prometheus.SummaryOpts

	// Counter defines counters
	Counter = prometheus.Counter
	// CounterVec defines counter vectors
	CounterVec = prometheus.CounterVec
	// Gauge defines gauges
	Gauge = prometheus.Gauge
	// GaugeVec defines gauge vectors
	GaugeVec = prometheus.GaugeVec
	// HistogramVec defines histogram vectors
	HistogramVec = prometheus.HistogramVec
	// SummaryVec defines summary vectors
	SummaryVec = prometheus.SummaryVec

	// MetricDesc defines a metric description
	MetricDesc = prometheus.Desc
)

// Counter registers a new counter.
func (r *Reporter) Counter(opts CounterOpts) Counter {
	return r.metrics.Factory(1).NewCounter(opts)
}

// CounterVec registers a new counter vector.
func (r *Reporter) CounterVec(opts CounterOpts, labelNames []string) *CounterVec {
	return r.metrics.Factory(1).NewCounterVec(opts, labelNames)
}

// Gauge registers a new gauge.
func (r *Reporter) Gauge(opts GaugeOpts) Gauge {
	return r.metrics.Factory(1).NewGauge(opts)
}

// GaugeVec registers a new gauge vector.
func (r *Reporter) GaugeVec(opts GaugeOpts, labelNames []string) *GaugeVec {
	return r.metrics.Factory(1).NewGaugeVec(opts, labelNames)
}

// HistogramVec registers a new histogram vector.
func (r *Reporter) HistogramVec(opts HistogramOpts, labelNames []string) *HistogramVec {
	return r.metrics.Factory(1).NewHistogramVec(opts, labelNames)
}

// SummaryVec registers a new summary vector.
func (r *Reporter) SummaryVec(opts SummaryOpts, labelNames []string) *SummaryVec {
	return r.metrics.Factory(1).NewSummaryVec(opts, labelNames)
}

// MetricsHTTPHandler returns the HTTP handler exposing metrics.
func (r *Reporter) MetricsHTTPHandler() http.Handler {
	return r.metrics.HTTPHandler()
}

// RegisterMetricCollector registers a custom collector. Its
// descriptions should come from MetricDesc().
func (r *Reporter) RegisterMetricCollector(c prometheus.Collector) {
	r.metrics.Collector(c)
}

// MetricDesc defines a new prefixed metric description.
func (r *Reporter) MetricDesc(name, help string, variableLabels []string) *MetricDesc {
	return r.metrics.Desc(1, name, help, variableLabels)
}
