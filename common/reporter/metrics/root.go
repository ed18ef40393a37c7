// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics handles metrics for sflowhdr. It wraps the
// Prometheus client and prefixes metric names with the package
// registering them.
package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sflowhdr/common/reporter/logger"
	"sflowhdr/common/reporter/stack"
)

// Metrics represents the internal state of the metric subsystem.
type Metrics struct {
	logger    logger.Logger
	config    Configuration
	registry  *prometheus.Registry
	factories sync.Map // caller function name → *Factory
}

// New creates a new metric registry, including process and Go runtime
// collectors.
func New(logger logger.Logger, configuration Configuration) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(collectors.WithGoCollections(
			collectors.GoRuntimeMemStatsCollection|collectors.GoRuntimeMetricsCollection)),
	)
	return &Metrics{
		logger:   logger,
		config:   configuration,
		registry: registry,
	}, nil
}

// HTTPHandler returns an handler exposing the metrics.
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: promHTTPLogger{m.logger},
	})
}

var prefixReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_")

// getPrefix turns a fully-qualified function name into a metric
// prefix: sflowhdr/inlet/flow.(*Component).Start becomes
// sflowhdr_inlet_flow_. Functions outside of the module get the
// module prefix.
func getPrefix(function string) string {
	pkg := stack.ModuleName
	if strings.HasPrefix(function, stack.ModuleName) {
		pkg, _, _ = strings.Cut(function, ".")
	}
	return prefixReplacer.Replace(pkg) + "_"
}

// callerFunction returns the name of the function calling into this
// package, skipping skip additional frames.
func callerFunction(skip int) string {
	// 0 is callerFunction, 1 is our exported method, 2 is the caller.
	return stack.Callers()[2+skip].Info().FunctionName()
}

// Factory returns a factory registering metrics prefixed with the
// package of the caller, after skipping skip frames. Factories are
// cached by caller.
func (m *Metrics) Factory(skip int) *Factory {
	caller := callerFunction(skip)
	if f, ok := m.factories.Load(caller); ok {
		return f.(*Factory)
	}
	f, _ := m.factories.LoadOrStore(caller, &Factory{
		prefix:   getPrefix(caller),
		registry: m.registry,
	})
	return f.(*Factory)
}

// Desc returns a metric description prefixed like metrics from
// Factory.
func (m *Metrics) Desc(skip int, name, help string, variableLabels []string) *prometheus.Desc {
	return prometheus.NewDesc(getPrefix(callerFunction(skip))+name, help, variableLabels, nil)
}

// Collector registers a custom collector.
func (m *Metrics) Collector(c prometheus.Collector) {
	m.registry.MustRegister(c)
}
