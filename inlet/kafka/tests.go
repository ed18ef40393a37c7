// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/go-cmp/cmp/cmpopts"

	"sflowhdr/common/daemon"
	"sflowhdr/common/helpers"
	"sflowhdr/common/reporter"
)

func init() {
	helpers.RegisterCmpOption(cmpopts.EquateComparable(Version{}))
}

// NewMock creates a new Kafka component with a mocked Kafka. It will
// fail the test if it cannot be started. The component is stopped on
// cleanup.
func NewMock(t *testing.T, r *reporter.Reporter, configuration Configuration) (*Component, *mocks.AsyncProducer) {
	t.Helper()
	c, err := New(r, configuration, Dependencies{Daemon: daemon.NewMock(t)})
	if err != nil {
		t.Fatalf("New() error:\n%+v", err)
	}

	// Use a mocked Kafka producer
	var mockProducer *mocks.AsyncProducer
	c.createKafkaProducer = func() (sarama.AsyncProducer, error) {
		mockProducer = mocks.NewAsyncProducer(t, c.kafkaConfig)
		return mockProducer, nil
	}
	helpers.StartStop(t, c)
	return c, mockProducer
}
