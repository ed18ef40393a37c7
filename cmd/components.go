// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"fmt"

	"sflowhdr/common/daemon"
	"sflowhdr/common/helpers"
	"sflowhdr/common/reporter"
)

type starter interface {
	Start() error
}

type stopper interface {
	Stop() error
}

// StartStopComponents starts the reporter, the daemon component and
// the other components in order, waits for the daemon to terminate and
// stops the started components in reverse order. When a component
// fails to start, the already started ones are stopped.
func StartStopComponents(r *reporter.Reporter, daemonComponent daemon.Component, otherComponents []interface{}) error {
	components := append([]interface{}{r, daemonComponent}, otherComponents...)
	var started []interface{}
	defer func() {
		for i := len(started) - 1; i >= 0; i-- {
			s, ok := started[i].(stopper)
			if !ok {
				continue
			}
			if err := s.Stop(); err != nil {
				r.Err(err).Str("component", fmt.Sprintf("%T", s)).Msg("unable to stop component, ignoring")
			}
		}
	}()
	for _, component := range components {
		if s, ok := component.(starter); ok {
			if err := s.Start(); err != nil {
				return fmt.Errorf("unable to start %T: %w", component, err)
			}
		}
		started = append(started, component)
	}

	r.Info().Str("version", helpers.Version).Msg("sflowhdr has started")
	<-daemonComponent.Terminated()
	r.Info().Msg("stopping all components")
	return nil
}
