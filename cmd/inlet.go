// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sflowhdr/common/daemon"
	"sflowhdr/common/httpserver"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow"
	"sflowhdr/inlet/kafka"
)

// InletConfiguration represents the configuration file for the inlet command.
type InletConfiguration struct {
	Reporting reporter.Configuration
	HTTP      httpserver.Configuration
	Flow      flow.Configuration
	Kafka     kafka.Configuration
}

// Reset resets the configuration for the inlet command to its default value.
func (c *InletConfiguration) Reset() {
	*c = InletConfiguration{
		HTTP:      httpserver.DefaultConfiguration(),
		Reporting: reporter.DefaultConfiguration(),
		Flow:      flow.DefaultConfiguration(),
		Kafka:     kafka.DefaultConfiguration(),
	}
}

type inletOptions struct {
	ConfigRelatedOptions
	CheckMode bool
}

// InletOptions stores the command-line option values for the inlet
// command.
var InletOptions inletOptions

var inletCmd = &cobra.Command{
	Use:   "inlet",
	Short: "Start sflowhdr's inlet service",
	Long: `The inlet service receives sFlow sampled header records, decodes them
and exports the resulting documents to Kafka.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := InletConfiguration{}
		InletOptions.Path = args[0]
		if err := InletOptions.Parse(cmd.OutOrStdout(), "inlet", &config); err != nil {
			return err
		}

		r, err := reporter.New(config.Reporting)
		if err != nil {
			return fmt.Errorf("unable to initialize reporter: %w", err)
		}
		return inletStart(r, config, InletOptions.CheckMode)
	},
}

func init() {
	RootCmd.AddCommand(inletCmd)
	inletCmd.Flags().BoolVarP(&InletOptions.ConfigRelatedOptions.Dump, "dump", "D", false,
		"Dump configuration before starting")
	inletCmd.Flags().BoolVarP(&InletOptions.CheckMode, "check", "C", false,
		"Check configuration, but does not start")
}

// inletComponents are the components of the inlet service, in
// starting order.
type inletComponents struct {
	daemon daemon.Component
	http   *httpserver.Component
	kafka  *kafka.Component
	flow   *flow.Component
}

func newInletComponents(r *reporter.Reporter, config InletConfiguration) (*inletComponents, error) {
	var (
		ic  inletComponents
		err error
	)
	if ic.daemon, err = daemon.New(r); err != nil {
		return nil, fmt.Errorf("unable to initialize daemon component: %w", err)
	}
	if ic.http, err = httpserver.New(r, config.HTTP, httpserver.Dependencies{
		Daemon: ic.daemon,
	}); err != nil {
		return nil, fmt.Errorf("unable to initialize http component: %w", err)
	}
	if ic.kafka, err = kafka.New(r, config.Kafka, kafka.Dependencies{
		Daemon: ic.daemon,
	}); err != nil {
		return nil, fmt.Errorf("unable to initialize Kafka component: %w", err)
	}
	if ic.flow, err = flow.New(r, config.Flow, flow.Dependencies{
		Daemon: ic.daemon,
		HTTP:   ic.http,
		Kafka:  ic.kafka,
	}); err != nil {
		return nil, fmt.Errorf("unable to initialize flow component: %w", err)
	}
	return &ic, nil
}

func inletStart(r *reporter.Reporter, config InletConfiguration, checkOnly bool) error {
	ic, err := newInletComponents(r, config)
	if err != nil {
		return err
	}
	addCommonHTTPHandlers(r, "inlet", ic.http)
	versionMetrics(r)
	if checkOnly {
		return nil
	}
	// Kafka has to be ready before the first record is received.
	return StartStopComponents(r, ic.daemon, []interface{}{ic.http, ic.kafka, ic.flow})
}
