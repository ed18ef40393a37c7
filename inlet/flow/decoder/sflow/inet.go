// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"encoding/binary"
	"net/netip"

	"sflowhdr/common/helpers"
	"sflowhdr/common/xdr"
)

// Inet4Header contains the fields of a sampled IPv4 header.
type Inet4Header struct {
	TOS            uint8
	TotalLength    uint16
	Identification uint16
	FragmentOffset uint16
	TTL            uint8
	Protocol       uint8
	SrcAddr        netip.Addr
	DstAddr        netip.Addr

	// Ports are only set for TCP, UDP and SCTP when captured.
	HasPorts bool
	SrcPort  uint16
	DstPort  uint16
}

// Inet6Header contains the fields of a sampled IPv6 header.
type Inet6Header struct {
	TrafficClass  uint8
	FlowLabel     uint32
	PayloadLength uint16
	NextHeader    uint8
	HopLimit      uint8
	SrcAddr       netip.Addr
	DstAddr       netip.Addr

	HasPorts bool
	SrcPort  uint16
	DstPort  uint16
}

func (*Inet4Header) isHeader() {}
func (*Inet6Header) isHeader() {}

// DecodeInet4Header decodes an IPv4 header from the provided bytes.
func DecodeInet4Header(data []byte) (*Inet4Header, error) {
	h, err := readInet4Header(xdr.NewCursor(data))
	return h, xdr.Invalid("IPv4 header", err)
}

// DecodeInet6Header decodes an IPv6 header from the provided bytes.
func DecodeInet6Header(data []byte) (*Inet6Header, error) {
	h, err := readInet6Header(xdr.NewCursor(data))
	return h, xdr.Invalid("IPv6 header", err)
}

func readInet4Header(c *xdr.Cursor) (*Inet4Header, error) {
	fixed, err := c.Bytes(20)
	if err != nil {
		return nil, err
	}
	h := Inet4Header{
		TOS:            fixed[1],
		TotalLength:    binary.BigEndian.Uint16(fixed[2:4]),
		Identification: binary.BigEndian.Uint16(fixed[4:6]),
		FragmentOffset: binary.BigEndian.Uint16(fixed[6:8]) & 0x1fff,
		TTL:            fixed[8],
		Protocol:       fixed[9],
		SrcAddr:        netip.AddrFrom4([4]byte(fixed[12:16])),
		DstAddr:        netip.AddrFrom4([4]byte(fixed[16:20])),
	}
	// Options may not be captured entirely: no ports then.
	ihl := int(fixed[0]&0xf) * 4
	if ihl > 20 && c.Skip(ihl-20) != nil {
		return &h, nil
	}
	if h.FragmentOffset == 0 {
		h.HasPorts, h.SrcPort, h.DstPort = readPorts(c, h.Protocol)
	}
	return &h, nil
}

func readInet6Header(c *xdr.Cursor) (*Inet6Header, error) {
	fixed, err := c.Bytes(40)
	if err != nil {
		return nil, err
	}
	first := binary.BigEndian.Uint32(fixed[0:4])
	h := Inet6Header{
		TrafficClass:  uint8(first >> 20),
		FlowLabel:     first & 0xfffff,
		PayloadLength: binary.BigEndian.Uint16(fixed[4:6]),
		NextHeader:    fixed[6],
		HopLimit:      fixed[7],
		SrcAddr:       netip.AddrFrom16([16]byte(fixed[8:24])),
		DstAddr:       netip.AddrFrom16([16]byte(fixed[24:40])),
	}
	h.HasPorts, h.SrcPort, h.DstPort = readPorts(c, h.NextHeader)
	return &h, nil
}

// readPorts reads source and destination ports when the transport
// protocol has some and they were captured.
func readPorts(c *xdr.Cursor, proto uint8) (bool, uint16, uint16) {
	if !helpers.HasPorts(proto) || c.Remaining() < 4 {
		return false, 0, 0
	}
	src, _ := c.Uint16()
	dst, _ := c.Uint16()
	return true, src, dst
}
