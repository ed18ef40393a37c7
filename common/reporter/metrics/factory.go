// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Factory registers metrics under a package prefix. Registering the
// same metric twice returns the first instance.
type Factory struct {
	prefix   string
	registry *prometheus.Registry
}

// register registers c and returns it, or the collector already
// registered under the same description.
func register[C prometheus.Collector](f *Factory, c C) C {
	if err := f.registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(C)
		}
		panic(err)
	}
	return c
}

// NewCounter registers a prefixed counter.
func (f *Factory) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Name = f.prefix + opts.Name
	return register(f, prometheus.NewCounter(opts))
}

// NewCounterVec registers a prefixed counter vector.
func (f *Factory) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	opts.Name = f.prefix + opts.Name
	return register(f, prometheus.NewCounterVec(opts, labelNames))
}

// NewGauge registers a prefixed gauge.
func (f *Factory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Name = f.prefix + opts.Name
	return register(f, prometheus.NewGauge(opts))
}

// NewGaugeVec registers a prefixed gauge vector.
func (f *Factory) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	opts.Name = f.prefix + opts.Name
	return register(f, prometheus.NewGaugeVec(opts, labelNames))
}

// NewSummaryVec registers a prefixed summary vector.
func (f *Factory) NewSummaryVec(opts prometheus.SummaryOpts, labelNames []string) *prometheus.SummaryVec {
	opts.Name = f.prefix + opts.Name
	return register(f, prometheus.NewSummaryVec(opts, labelNames))
}

// NewHistogramVec registers a prefixed histogram vector.
func (f *Factory) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	opts.Name = f.prefix + opts.Name
	return register(f, prometheus.NewHistogramVec(opts, labelNames))
}
