// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package daemon handles the lifetime of the process. The daemon
// terminates on SIGINT or SIGTERM, or when one of the tracked tombs
// dies.
package daemon

import (
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/tomb.v2"

	"sflowhdr/common/reporter"
)

// Component is the interface the daemon component provides.
type Component interface {
	Start() error
	Stop() error
	Track(t *tomb.Tomb, who string)

	// Lifecycle
	Terminated() <-chan struct{}
	Terminate()
}

// realComponent is a non-mock implementation of the Component
// interface.
type realComponent struct {
	r       *reporter.Reporter
	signals chan os.Signal
	tracked []tracked

	lifecycleComponent
}

// tracked is a tomb and the name of its owner. Names are not unique.
type tracked struct {
	who  string
	tomb *tomb.Tomb
}

// New creates a new daemon component.
func New(r *reporter.Reporter) (Component, error) {
	return &realComponent{
		r:                  r,
		signals:            make(chan os.Signal, 1),
		lifecycleComponent: newLifecycleComponent(),
	}, nil
}

// Track registers a tomb whose death terminates the daemon. It should
// be called before Start().
func (c *realComponent) Track(t *tomb.Tomb, who string) {
	c.tracked = append(c.tracked, tracked{who, t})
}

// Start starts watching signals and tracked tombs.
func (c *realComponent) Start() error {
	signal.Notify(c.signals, syscall.SIGINT, syscall.SIGTERM)
	go c.waitSignal()
	for _, t := range c.tracked {
		go c.follow(t.who, t.tomb)
	}
	return nil
}

// Stop stops the component.
func (c *realComponent) Stop() error {
	signal.Stop(c.signals)
	c.Terminate()
	return nil
}

func (c *realComponent) waitSignal() {
	select {
	case s := <-c.signals:
		c.r.Info().Stringer("signal", s).Msg("signal received, quitting")
		c.Terminate()
	case <-c.Terminated():
	}
}

func (c *realComponent) follow(who string, t *tomb.Tomb) {
	select {
	case <-t.Dying():
	case <-c.Terminated():
		return
	}
	l := c.r.With().Str("component", who).Logger()
	if err := t.Err(); err != nil {
		l.Err(err).Msg("component error, quitting")
	} else {
		l.Debug().Msg("component shutting down, quitting")
	}
	c.Terminate()
}
