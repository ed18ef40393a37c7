// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package sflow decodes sFlow v5 sampled header records: the
// sampled_header flow data, with the captured Ethernet, IPv4 or IPv6
// header bytes.
package sflow

import (
	"sflowhdr/common/xdr"
)

// Header is one of *EthernetHeader, *Inet4Header, *Inet6Header or
// RawHeader.
type Header interface {
	isHeader()
}

// RawHeader contains header bytes for protocols we do not decode.
type RawHeader []byte

func (RawHeader) isHeader() {}

// SampledHeader is a decoded sampled_header record. Header is
// selected by Protocol: *EthernetHeader, *Inet4Header, *Inet6Header
// or, for any other protocol, RawHeader.
type SampledHeader struct {
	Protocol    HeaderProtocol
	FrameLength uint32
	Stripped    uint32
	Header      Header
}

// Ethernet returns the Ethernet header, if any.
func (h *SampledHeader) Ethernet() *EthernetHeader {
	ethernet, _ := h.Header.(*EthernetHeader)
	return ethernet
}

// Inet4 returns the IPv4 header, either sampled directly or found
// inside the Ethernet header.
func (h *SampledHeader) Inet4() *Inet4Header {
	switch header := h.Header.(type) {
	case *Inet4Header:
		return header
	case *EthernetHeader:
		return header.Inet4()
	}
	return nil
}

// Inet6 returns the IPv6 header, either sampled directly or found
// inside the Ethernet header.
func (h *SampledHeader) Inet6() *Inet6Header {
	switch header := h.Header.(type) {
	case *Inet6Header:
		return header
	case *EthernetHeader:
		return header.Inet6()
	}
	return nil
}

// Raw returns the header bytes of a protocol we do not decode.
func (h *SampledHeader) Raw() RawHeader {
	raw, _ := h.Header.(RawHeader)
	return raw
}

// DecodeSampledHeader decodes a sampled_header record. On error, no
// record is returned and the error is an *xdr.InvalidPacketError.
func DecodeSampledHeader(payload []byte) (*SampledHeader, error) {
	return ReadSampledHeader(xdr.NewCursor(payload))
}

// ReadSampledHeader decodes a sampled_header record from the cursor.
// On error, the cursor position is undefined.
func ReadSampledHeader(c *xdr.Cursor) (*SampledHeader, error) {
	h, err := readSampledHeader(c)
	if err != nil {
		return nil, xdr.Invalid("sampled header", err)
	}
	return h, nil
}

func readSampledHeader(c *xdr.Cursor) (*SampledHeader, error) {
	protocol, err := ReadHeaderProtocol(c)
	if err != nil {
		return nil, err
	}
	frameLength, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	stripped, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	h := SampledHeader{
		Protocol:    protocol,
		FrameLength: frameLength,
		Stripped:    stripped,
	}

	var opaque xdr.Opaque[Header]
	switch protocol {
	case HeaderProtocolEthernet:
		opaque, err = xdr.DecodeOpaque(c, asHeader(readEthernetHeader))
	case HeaderProtocolIPv4:
		opaque, err = xdr.DecodeOpaque(c, asHeader(readInet4Header))
	case HeaderProtocolIPv6:
		opaque, err = xdr.DecodeOpaque(c, asHeader(readInet6Header))
	default:
		opaque, err = xdr.DecodeOpaque(c, func(sub *xdr.Cursor) (Header, error) {
			raw, err := xdr.RawOpaque(sub)
			return RawHeader(raw), err
		})
	}
	if err != nil {
		return nil, err
	}
	h.Header = opaque.Value
	return &h, nil
}

// asHeader turns a decoder for a concrete header into a decoder for a
// Header.
func asHeader[T Header](decode func(*xdr.Cursor) (T, error)) func(*xdr.Cursor) (Header, error) {
	return func(c *xdr.Cursor) (Header, error) {
		h, err := decode(c)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}
