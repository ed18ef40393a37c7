// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package flow

import (
	"testing"

	"github.com/IBM/sarama/mocks"

	"sflowhdr/common/daemon"
	"sflowhdr/common/helpers"
	"sflowhdr/common/httpserver"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
	"sflowhdr/inlet/flow/input/udp"
	"sflowhdr/inlet/kafka"
)

// NewMock creates a new flow component listening on a random port,
// with mocked HTTP and Kafka components. It is autostarted.
func NewMock(t *testing.T, r *reporter.Reporter, config Configuration) (*Component, *httpserver.Component, *mocks.AsyncProducer) {
	t.Helper()
	if config.Inputs == nil {
		config.Inputs = []InputConfiguration{{
			Config: &udp.Configuration{
				Listen:        "127.0.0.1:0",
				Workers:       1,
				MaxRecordSize: 9216,
			},
		}}
	}
	h := httpserver.NewMock(t, r)
	k, producer := kafka.NewMock(t, r, kafka.DefaultConfiguration())
	c, err := New(r, config, Dependencies{
		Daemon: daemon.NewMock(t),
		HTTP:   h,
		Kafka:  k,
	})
	if err != nil {
		t.Fatalf("New() error:\n%+v", err)
	}
	helpers.StartStop(t, c)
	return c, h, producer
}

// Inject injects the provided raw flow, as if it was received from an
// input.
func (c *Component) Inject(exporter string, flow *decoder.RawFlow) {
	c.send(exporter, flow)
}
