// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"errors"

	"sflowhdr/common/reporter"
	"sflowhdr/common/xdr"
	"sflowhdr/inlet/flow/decoder"
)

// Decoder contains the state for the sampled header decoder.
type Decoder struct {
	r    *reporter.Reporter
	mode TraversalMode

	metrics struct {
		errors  *reporter.CounterVec
		stats   *reporter.CounterVec
		headers *reporter.CounterVec
	}
}

// New instantiates a new sampled header decoder.
func New(r *reporter.Reporter, mode TraversalMode) *Decoder {
	nd := &Decoder{
		r:    r,
		mode: mode,
	}
	nd.metrics.errors = nd.r.CounterVec(
		reporter.CounterOpts{
			Name: "errors_total",
			Help: "Sampled headers that could not be decoded.",
		},
		[]string{"exporter", "error"},
	)
	nd.metrics.stats = nd.r.CounterVec(
		reporter.CounterOpts{
			Name: "count",
			Help: "Sampled headers decoded.",
		},
		[]string{"exporter", "protocol"},
	)
	nd.metrics.headers = nd.r.CounterVec(
		reporter.CounterOpts{
			Name: "headers_total",
			Help: "Headers visited in decoded records.",
		},
		[]string{"exporter", "kind"},
	)
	return nd
}

// Decode decodes a sampled header record and renders it as a document.
func (nd *Decoder) Decode(in decoder.RawFlow) (*decoder.Message, error) {
	exporter := in.Source.Unmap().String()
	h, err := DecodeSampledHeader(in.Payload)
	if err != nil {
		if errors.Is(err, xdr.ErrTruncatedInput) {
			nd.metrics.errors.WithLabelValues(exporter, "truncated").Inc()
		} else {
			nd.metrics.errors.WithLabelValues(exporter, "invalid").Inc()
		}
		return nil, err
	}

	protocol := "other"
	if h.Protocol.Known() {
		protocol = h.Protocol.String()
	}
	nd.metrics.stats.WithLabelValues(exporter, protocol).Inc()
	Walk(h, nd.headerCounter(exporter), nd.mode)

	doc, err := EncodeDocument(h)
	if err != nil {
		nd.metrics.errors.WithLabelValues(exporter, "encoding").Inc()
		return nil, err
	}
	return &decoder.Message{
		TimeReceived: in.TimeReceived,
		Exporter:     in.Source,
		Protocol:     protocol,
		Document:     doc,
	}, nil
}

// headerCounter returns a visitor counting visited headers.
func (nd *Decoder) headerCounter(exporter string) Visitor {
	count := func(kind string) {
		nd.metrics.headers.WithLabelValues(exporter, kind).Inc()
	}
	return VisitorFuncs{
		SampledHeader:  func(*SampledHeader) { count("sampled") },
		EthernetHeader: func(*EthernetHeader) { count("ethernet") },
		Inet4Header:    func(*Inet4Header) { count("ipv4") },
		Inet6Header:    func(*Inet6Header) { count("ipv6") },
	}
}

// Name returns the name of the decoder.
func (nd *Decoder) Name() string {
	return "sflow"
}
