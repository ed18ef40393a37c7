// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package flow

import "sflowhdr/common/reporter"

type metrics struct {
	decoderStats   *reporter.CounterVec
	decoderErrors  *reporter.CounterVec
	decoderTime    *reporter.SummaryVec
	breakerOpen    *reporter.CounterVec
	breakerDropped *reporter.CounterVec
}

func (c *Component) initMetrics() {
	c.metrics.decoderStats = c.r.CounterVec(
		reporter.CounterOpts{
			Name: "decoder_flows_total",
			Help: "Decoder processed count.",
		},
		[]string{"name"},
	)
	c.metrics.decoderErrors = c.r.CounterVec(
		reporter.CounterOpts{
			Name: "decoder_errors_total",
			Help: "Decoder processed error count.",
		},
		[]string{"name"},
	)
	c.metrics.decoderTime = c.r.SummaryVec(
		reporter.SummaryOpts{
			Name:       "decoder_time_seconds",
			Help:       "Decoding time summary.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"name"},
	)
	c.metrics.breakerOpen = c.r.CounterVec(
		reporter.CounterOpts{
			Name: "breaker_open_total",
			Help: "Number of times the breaker of an exporter opened.",
		},
		[]string{"exporter"},
	)
	c.metrics.breakerDropped = c.r.CounterVec(
		reporter.CounterOpts{
			Name: "breaker_dropped_flows_total",
			Help: "Number of records dropped because the breaker of the exporter was open.",
		},
		[]string{"exporter"},
	)
}
