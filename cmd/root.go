// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package cmd handles the command-line interface for sflowhdr
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	debug     bool
	logFormat string
)

// RootCmd is the root for all commands
var RootCmd = &cobra.Command{
	Use:   "sflowhdr",
	Short: "sFlow sampled header decoder",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(os.Stderr, logFormat, debug)
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

// setupLogging configures the global logger. With the "auto" format,
// logs are human-readable on a terminal and JSON otherwise.
func setupLogging(out *os.File, format string, debug bool) error {
	var w io.Writer
	switch format {
	case "auto":
		if isatty.IsTerminal(out.Fd()) {
			w = zerolog.ConsoleWriter{Out: out}
		} else {
			w = out
		}
	case "console":
		w = zerolog.ConsoleWriter{Out: out, NoColor: !isatty.IsTerminal(out.Fd())}
	case "json":
		w = out
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return nil
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logs")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"Log format (auto, console or json)")
}
