// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package file replays sFlow datagrams stored in files. It is used
// for testing and for demonstrations.
package file

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/tomb.v2"

	"sflowhdr/common/daemon"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
	"sflowhdr/inlet/flow/input"
)

// Input represents the state of a file input.
type Input struct {
	r      *reporter.Reporter
	t      tomb.Tomb
	config *Configuration
	clock  clock.Clock
	send   input.SendFunc

	replayed reporter.Counter
}

var (
	_ input.Input         = &Input{}
	_ input.Configuration = &Configuration{}
)

// replayExporter is the exporter address attached to replayed datagrams.
var replayExporter = netip.MustParseAddr("127.0.0.1")

// New instantiate a new file input from the provided configuration.
func (configuration *Configuration) New(r *reporter.Reporter, daemon daemon.Component, send input.SendFunc) (input.Input, error) {
	if len(configuration.Paths) == 0 {
		return nil, errors.New("no paths provided for file input")
	}
	in := &Input{
		r:      r,
		config: configuration,
		clock:  clock.New(),
		send:   send,
		replayed: r.Counter(reporter.CounterOpts{
			Name: "datagrams_total",
			Help: "Datagrams replayed from files.",
		}),
	}
	daemon.Track(&in.t, "inlet/flow/input/file")
	return in, nil
}

// Start loads the files and replays them in a loop.
func (in *Input) Start() error {
	payloads := make([][]byte, len(in.config.Paths))
	for i, path := range in.config.Paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read %q: %w", path, err)
		}
		payloads[i] = data
	}
	in.r.Info().Int("files", len(payloads)).Msg("file input starting")

	var tick <-chan time.Time
	if in.config.Interval > 0 {
		ticker := in.clock.Ticker(in.config.Interval)
		tick = ticker.C
		in.t.Go(func() error {
			<-in.t.Dying()
			ticker.Stop()
			return nil
		})
	}
	in.t.Go(func() error {
		in.replay(payloads, tick)
		return nil
	})
	return nil
}

// replay sends payloads until the input dies. When tick is not nil,
// each datagram waits for a tick.
func (in *Input) replay(payloads [][]byte, tick <-chan time.Time) {
	var flow decoder.RawFlow
	for sent := uint(0); in.config.MaxDatagrams == 0 || sent < in.config.MaxDatagrams; sent++ {
		if tick != nil {
			select {
			case <-in.t.Dying():
				return
			case <-tick:
			}
		} else if !in.t.Alive() {
			return
		}
		flow.TimeReceived = in.clock.Now()
		flow.Payload = payloads[sent%uint(len(payloads))]
		flow.Source = replayExporter
		in.send(replayExporter.String(), &flow)
		in.replayed.Inc()
	}
	<-in.t.Dying()
}

// Stop stops the file input.
func (in *Input) Stop() error {
	defer in.r.Info().Msg("file input stopped")
	in.t.Kill(nil)
	return in.t.Wait()
}
