// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package flow

import (
	"errors"

	"github.com/eapache/go-resiliency/breaker"

	"sflowhdr/inlet/flow/decoder"
)

// exporterBreaker returns the breaker for the provided exporter or nil
// if breakers are disabled.
func (c *Component) exporterBreaker(exporter string) *breaker.Breaker {
	if c.config.BreakerThreshold == 0 {
		return nil
	}
	c.breakersLock.Lock()
	defer c.breakersLock.Unlock()
	b, ok := c.breakers[exporter]
	if !ok {
		b = breaker.New(c.config.BreakerThreshold, 1, c.config.BreakerTimeout)
		c.breakers[exporter] = b
	}
	return b
}

// decodeWithBreaker decodes a raw flow through the breaker of the
// exporter. When the breaker is open, the flow is dropped without
// being decoded and breaker.ErrBreakerOpen is returned.
func (c *Component) decodeWithBreaker(exporter string, flow *decoder.RawFlow) (*decoder.Message, error) {
	b := c.exporterBreaker(exporter)
	if b == nil {
		return c.decode(exporter, flow)
	}
	var msg *decoder.Message
	before := b.GetState()
	err := b.Run(func() (err error) {
		msg, err = c.decode(exporter, flow)
		return err
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		c.metrics.breakerDropped.WithLabelValues(exporter).Inc()
		return nil, err
	}
	if before != breaker.Open && b.GetState() == breaker.Open {
		c.metrics.breakerOpen.WithLabelValues(exporter).Inc()
		c.r.Warn().Str("exporter", exporter).Msg("too many decoding errors, dropping records from exporter")
	}
	return msg, err
}

// openBreakers returns the number of exporters with an open breaker.
func (c *Component) openBreakers() int {
	c.breakersLock.Lock()
	defer c.breakersLock.Unlock()
	count := 0
	for _, b := range c.breakers {
		if b.GetState() == breaker.Open {
			count++
		}
	}
	return count
}
