// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"net"

	"sflowhdr/common/helpers"
	"sflowhdr/common/xdr"
)

// EthernetHeader contains the fields of a sampled Ethernet frame.
type EthernetHeader struct {
	DstMAC net.HardwareAddr
	SrcMAC net.HardwareAddr
	// VLAN is the VLAN ID of the innermost 802.1Q/802.1ad tag.
	HasVLAN bool
	VLAN    uint16
	// EtherType is the type of the payload, after VLAN tags.
	EtherType uint16
	// Network is nil, *Inet4Header or *Inet6Header depending on
	// EtherType.
	Network Header
	// Raw is a copy of the whole captured frame.
	Raw []byte
}

func (*EthernetHeader) isHeader() {}

// Inet4 returns the embedded IPv4 header, if any.
func (h *EthernetHeader) Inet4() *Inet4Header {
	inet4, _ := h.Network.(*Inet4Header)
	return inet4
}

// Inet6 returns the embedded IPv6 header, if any.
func (h *EthernetHeader) Inet6() *Inet6Header {
	inet6, _ := h.Network.(*Inet6Header)
	return inet6
}

// DecodeEthernetHeader decodes an Ethernet frame from the provided bytes.
func DecodeEthernetHeader(data []byte) (*EthernetHeader, error) {
	h, err := readEthernetHeader(xdr.NewCursor(data))
	return h, xdr.Invalid("Ethernet header", err)
}

func readEthernetHeader(c *xdr.Cursor) (*EthernetHeader, error) {
	raw := append([]byte{}, c.Rest()...)
	if err := c.Skip(12); err != nil {
		return nil, err
	}
	etherType, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	h := EthernetHeader{
		DstMAC: net.HardwareAddr(raw[0:6:6]),
		SrcMAC: net.HardwareAddr(raw[6:12:12]),
		Raw:    raw,
	}
	for etherType == helpers.ETypeVLAN || etherType == helpers.ETypeQinQ {
		tci, err := c.Uint16()
		if err != nil {
			return nil, err
		}
		h.HasVLAN = true
		h.VLAN = tci & 0x0fff
		if etherType, err = c.Uint16(); err != nil {
			return nil, err
		}
	}
	h.EtherType = etherType

	switch etherType {
	case helpers.ETypeIPv4:
		inet4, err := readInet4Header(c)
		if err != nil {
			return nil, xdr.Invalid("IPv4 header", err)
		}
		h.Network = inet4
	case helpers.ETypeIPv6:
		inet6, err := readInet6Header(c)
		if err != nil {
			return nil, xdr.Invalid("IPv6 header", err)
		}
		h.Network = inet6
	}
	return &h, nil
}
