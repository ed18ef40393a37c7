// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"fmt"

	"sflowhdr/common/xdr"
)

// HeaderProtocol is the format of a sampled header, as defined by sFlow
// v5. Values outside of the known ones are kept as is.
type HeaderProtocol uint32

// Header protocols defined by sFlow v5.
const (
	HeaderProtocolEthernet   HeaderProtocol = 1
	HeaderProtocolTokenBus   HeaderProtocol = 2
	HeaderProtocolTokenRing  HeaderProtocol = 3
	HeaderProtocolFDDI       HeaderProtocol = 4
	HeaderProtocolFrameRelay HeaderProtocol = 5
	HeaderProtocolX25        HeaderProtocol = 6
	HeaderProtocolPPP        HeaderProtocol = 7
	HeaderProtocolSMDS       HeaderProtocol = 8
	HeaderProtocolAAL5       HeaderProtocol = 9
	HeaderProtocolAAL5IP     HeaderProtocol = 10
	HeaderProtocolIPv4       HeaderProtocol = 11
	HeaderProtocolIPv6       HeaderProtocol = 12
	HeaderProtocolMPLS       HeaderProtocol = 13
	HeaderProtocolPOS        HeaderProtocol = 14
)

// HeaderProtocolFrom maps a wire value to a header protocol.
func HeaderProtocolFrom(value uint32) HeaderProtocol {
	return HeaderProtocol(value)
}

// ReadHeaderProtocol reads a header protocol from the cursor. An
// unknown value is not an error.
func ReadHeaderProtocol(c *xdr.Cursor) (HeaderProtocol, error) {
	value, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	return HeaderProtocolFrom(value), nil
}

// name returns the sFlow name of the protocol or an empty string when
// the protocol is unknown.
func (p HeaderProtocol) name() string {
	switch p {
	case HeaderProtocolEthernet:
		return "ETHERNET_ISO88023"
	case HeaderProtocolTokenBus:
		return "ISO88024_TOKENBUS"
	case HeaderProtocolTokenRing:
		return "ISO88025_TOKENRING"
	case HeaderProtocolFDDI:
		return "FDDI"
	case HeaderProtocolFrameRelay:
		return "FRAME_RELAY"
	case HeaderProtocolX25:
		return "X25"
	case HeaderProtocolPPP:
		return "PPP"
	case HeaderProtocolSMDS:
		return "SMDS"
	case HeaderProtocolAAL5:
		return "AAL5"
	case HeaderProtocolAAL5IP:
		return "AAL5_IP"
	case HeaderProtocolIPv4:
		return "IPv4"
	case HeaderProtocolIPv6:
		return "IPv6"
	case HeaderProtocolMPLS:
		return "MPLS"
	case HeaderProtocolPOS:
		return "POS"
	}
	return ""
}

// Known tells if the protocol is one of the values defined by sFlow v5.
func (p HeaderProtocol) Known() bool {
	return p.name() != ""
}

func (p HeaderProtocol) String() string {
	if name := p.name(); name != "" {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(p))
}

// ParseHeaderProtocol returns the known protocol with the provided
// sFlow name.
func ParseHeaderProtocol(name string) (HeaderProtocol, bool) {
	for p := HeaderProtocolEthernet; p <= HeaderProtocolPOS; p++ {
		if p.name() == name {
			return p, true
		}
	}
	return 0, false
}
