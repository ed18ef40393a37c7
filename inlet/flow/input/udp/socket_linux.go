// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build linux

package udp

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// Room for a SO_RXQ_OVFL counter and a SO_TIMESTAMP_NEW timeval.
var oobLength = unix.CmsgSpace(4) + unix.CmsgSpace(16)

var udpSocketOptions = []socketOption{
	{Name: "SO_REUSEADDR", Level: unix.SOL_SOCKET, Option: unix.SO_REUSEADDR, Mandatory: true},
	{Name: "SO_REUSEPORT", Level: unix.SOL_SOCKET, Option: unix.SO_REUSEPORT, Mandatory: true},
	// Total number of datagrams dropped by the socket
	{Name: "SO_RXQ_OVFL", Level: unix.SOL_SOCKET, Option: unix.SO_RXQ_OVFL},
	// Kernel reception timestamp
	{Name: "SO_TIMESTAMP_NEW", Level: unix.SOL_SOCKET, Option: unix.SO_TIMESTAMP_NEW},
}

// parseSocketControlMessage extracts the drop counter and the
// reception time from ancillary data. Both are in host byte order.
func parseSocketControlMessage(b []byte) (oobMessage, error) {
	var result oobMessage
	messages, err := unix.ParseSocketControlMessage(b)
	if err != nil {
		return result, err
	}
	for _, m := range messages {
		if m.Header.Level != unix.SOL_SOCKET {
			continue
		}
		switch {
		case m.Header.Type == unix.SO_RXQ_OVFL && len(m.Data) >= 4:
			result.Drops = binary.NativeEndian.Uint32(m.Data)
		case m.Header.Type == unix.SO_TIMESTAMP_NEW && len(m.Data) >= 16:
			sec := int64(binary.NativeEndian.Uint64(m.Data))
			usec := int64(binary.NativeEndian.Uint64(m.Data[8:]))
			result.Received = time.Unix(sec, usec*int64(time.Microsecond))
		}
	}
	return result, nil
}
