// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package input defines the interface of an input module for inlet.
package input

import (
	"sflowhdr/common/daemon"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
)

// Input is the interface any input should meet
type Input interface {
	// Start instructs an input to start producing flows.
	Start() error
	// Stop instructs the input to stop producing flows.
	Stop() error
}

// SendFunc is a function to send a raw flow to the next stage. The
// payload is only valid during the call.
type SendFunc func(exporter string, flow *decoder.RawFlow)

// Configuration the interface for the configuration for an input module.
type Configuration interface {
	// New instantiantes a new input from its configuration.
	New(r *reporter.Reporter, daemon daemon.Component, send SendFunc) (Input, error)
}
