// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package flow handles incoming sampled header records: it receives
// them from the inputs, decodes them and forwards the resulting
// documents to Kafka.
package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"gopkg.in/tomb.v2"

	"sflowhdr/common/daemon"
	"sflowhdr/common/httpserver"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
	"sflowhdr/inlet/flow/decoder/sflow"
	"sflowhdr/inlet/flow/input"
	"sflowhdr/inlet/kafka"
)

// Component represents the flow component.
type Component struct {
	r      *reporter.Reporter
	d      *Dependencies
	t      tomb.Tomb
	config Configuration

	errLogger reporter.Logger
	decoder   decoder.Decoder
	inputs    []input.Input
	metrics   metrics

	breakersLock sync.Mutex
	breakers     map[string]*breaker.Breaker

	recentLock sync.Mutex
	recent     []*decoder.Message
	recentNext int

	healthy chan reporter.ChannelHealthcheckFunc
}

// Dependencies are the dependencies of the flow component.
type Dependencies struct {
	Daemon daemon.Component
	HTTP   *httpserver.Component
	Kafka  *kafka.Component
}

// New creates a new flow component.
func New(r *reporter.Reporter, configuration Configuration, dependencies Dependencies) (*Component, error) {
	if len(configuration.Inputs) == 0 {
		return nil, fmt.Errorf("no input configured")
	}

	c := Component{
		r:      r,
		d:      &dependencies,
		config: configuration,

		errLogger: r.Sample(reporter.BurstSampler(time.Minute, 10)),
		decoder:   sflow.New(r, configuration.Traversal),
		inputs:    make([]input.Input, len(configuration.Inputs)),
		breakers:  make(map[string]*breaker.Breaker),
		recent:    make([]*decoder.Message, 0, configuration.RecentFlows),
		healthy:   make(chan reporter.ChannelHealthcheckFunc),
	}
	c.initMetrics()

	for idx, input := range c.config.Inputs {
		var err error
		c.inputs[idx], err = input.Config.New(r, c.d.Daemon, c.send)
		if err != nil {
			return nil, err
		}
	}

	c.d.Daemon.Track(&c.t, "inlet/flow")
	c.d.HTTP.GinRouter.GET("/api/v0/inlet/flow/recent",
		c.d.HTTP.CacheByRequestPath(time.Second),
		c.recentFlowsHandlerFunc)
	c.d.HTTP.GinRouter.POST("/api/v0/inlet/flow/decode",
		c.d.HTTP.CacheByRequestBody(time.Minute),
		c.decodeHandlerFunc)
	return &c, nil
}

// Start starts the flow component.
func (c *Component) Start() error {
	c.r.Info().Msg("starting flow component")
	c.r.RegisterHealthcheck("inlet/flow", reporter.ChannelHealthcheck(c.t.Context(nil), c.healthy))
	c.t.Go(c.answerHealthchecks)
	for idx, in := range c.inputs {
		if err := in.Start(); err != nil {
			// Stop what was already started.
			err = fmt.Errorf("unable to start input %d: %w", idx, err)
			c.t.Kill(err)
			c.t.Wait()
			return err
		}
		c.t.Go(func() error {
			<-c.t.Dying()
			if err := in.Stop(); err != nil {
				c.r.Err(err).Int("input", idx).Msg("unable to stop input")
			}
			return nil
		})
	}
	return nil
}

// answerHealthchecks reports a warning while some exporters have an
// open breaker.
func (c *Component) answerHealthchecks() error {
	for {
		select {
		case <-c.t.Dying():
			return nil
		case cb, ok := <-c.healthy:
			if !ok {
				return nil
			}
			open := c.openBreakers()
			if open == 0 {
				cb(reporter.HealthcheckOK, "ok")
				continue
			}
			cb(reporter.HealthcheckWarning, fmt.Sprintf("%d exporters with an open breaker", open))
		}
	}
}

// Stop stops the flow component
func (c *Component) Stop() error {
	defer c.r.Info().Msg("flow component stopped")
	c.r.Info().Msg("stopping flow component")
	c.t.Kill(nil)
	return c.t.Wait()
}

// send decodes a raw flow and forwards the result to Kafka. It is
// called from the input workers.
func (c *Component) send(exporter string, flow *decoder.RawFlow) {
	msg, err := c.decodeWithBreaker(exporter, flow)
	if err != nil {
		return
	}
	c.remember(msg)
	c.d.Kafka.Send(exporter, msg.Document)
}

// decode decodes a raw flow while keeping some stats.
func (c *Component) decode(exporter string, flow *decoder.RawFlow) (*decoder.Message, error) {
	start := time.Now()
	msg, err := c.decoder.Decode(*flow)
	if err != nil {
		c.metrics.decoderErrors.WithLabelValues(c.decoder.Name()).Inc()
		c.errLogger.Err(err).Str("exporter", exporter).Msg("unable to decode sampled header")
		return nil, err
	}
	c.metrics.decoderTime.WithLabelValues(c.decoder.Name()).
		Observe(time.Since(start).Seconds())
	c.metrics.decoderStats.WithLabelValues(c.decoder.Name()).Inc()
	return msg, nil
}

// remember keeps the provided message in the ring of recent messages.
func (c *Component) remember(msg *decoder.Message) {
	if c.config.RecentFlows == 0 {
		return
	}
	c.recentLock.Lock()
	defer c.recentLock.Unlock()
	if len(c.recent) < c.config.RecentFlows {
		c.recent = append(c.recent, msg)
		return
	}
	c.recent[c.recentNext] = msg
	c.recentNext = (c.recentNext + 1) % c.config.RecentFlows
}

// recentFlows returns the recent messages, oldest first.
func (c *Component) recentFlows() []*decoder.Message {
	c.recentLock.Lock()
	defer c.recentLock.Unlock()
	result := make([]*decoder.Message, 0, len(c.recent))
	result = append(result, c.recent[c.recentNext:]...)
	result = append(result, c.recent[:c.recentNext]...)
	return result
}
