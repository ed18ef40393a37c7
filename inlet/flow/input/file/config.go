// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package file

import (
	"time"

	"sflowhdr/inlet/flow/input"
)

// Configuration describes file input configuration.
type Configuration struct {
	// Paths are the files to replay, in order. Each file contains one
	// sFlow datagram.
	Paths []string `validate:"min=1,dive,required"`
	// MaxDatagrams is the number of datagrams to replay before
	// pausing. 0 means to replay forever.
	MaxDatagrams uint
	// Interval is the delay between two datagrams. 0 means to send them
	// as fast as possible.
	Interval time.Duration `validate:"min=0"`
}

// DefaultConfiguration describes the default configuration for file input.
func DefaultConfiguration() input.Configuration {
	return &Configuration{}
}
