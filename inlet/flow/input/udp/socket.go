// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package udp

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"sflowhdr/common/reporter"
)

type oobMessage struct {
	Drops    uint32
	Received time.Time
}

// socketOption is a boolean socket option to enable on listening
// sockets. When it is not mandatory, failing to set it is only logged.
type socketOption struct {
	Name      string
	Level     int
	Option    int
	Mandatory bool
}

// listenConfig configures a listening socket with the provided options.
func listenConfig(r *reporter.Reporter, opts []socketOption) *net.ListenConfig {
	return &net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var err error
			cerr := c.Control(func(fd uintptr) {
				for _, opt := range opts {
					if e := unix.SetsockoptInt(int(fd), opt.Level, opt.Option, 1); e != nil {
						if opt.Mandatory {
							err = fmt.Errorf("cannot set option %s: %w", opt.Name, e)
							return
						}
						r.Warn().Err(e).Str("option", opt.Name).Msg("cannot set socket option")
					}
				}
			})
			if cerr != nil {
				return cerr
			}
			return err
		},
	}
}
