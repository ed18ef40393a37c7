// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package helpers

const (
	// ETypeIPv4 is the ether type for IPv4
	ETypeIPv4 = 0x800
	// ETypeIPv6 is the ether type for IPv6
	ETypeIPv6 = 0x86dd
	// ETypeVLAN is the ether type for an 802.1Q tag
	ETypeVLAN = 0x8100
	// ETypeQinQ is the ether type for an 802.1ad tag
	ETypeQinQ = 0x88a8
)

const (
	// ProtoTCP is the IP protocol number for TCP
	ProtoTCP = 6
	// ProtoUDP is the IP protocol number for UDP
	ProtoUDP = 17
	// ProtoSCTP is the IP protocol number for SCTP
	ProtoSCTP = 132
)

// HasPorts tells if the provided IP protocol carries source and
// destination ports as its first four bytes.
func HasPorts(proto uint8) bool {
	switch proto {
	case ProtoTCP, ProtoUDP, ProtoSCTP:
		return true
	}
	return false
}
