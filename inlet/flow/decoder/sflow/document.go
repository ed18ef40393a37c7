// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"go.mongodb.org/mongo-driver/bson/bsontype"

	"sflowhdr/common/document"
)

// WriteDocument renders a record as a document: protocol,
// frame_length, stripped, then one of ethernet, ipv4, ipv6 or raw.
// For Ethernet records, the IP header only appears inside ethernet; it
// is not repeated at the top level.
func WriteDocument(w document.Writer, h *SampledHeader) {
	if h.Protocol.Known() {
		w.WriteString("protocol", h.Protocol.String())
	} else {
		w.WriteInt64("protocol", int64(h.Protocol))
	}
	w.WriteInt64("frame_length", int64(h.FrameLength))
	w.WriteInt64("stripped", int64(h.Stripped))
	switch header := h.Header.(type) {
	case *EthernetHeader:
		w.WriteDocument("ethernet", func(w document.Writer) { writeEthernet(w, header) })
	case *Inet4Header:
		w.WriteDocument("ipv4", func(w document.Writer) { writeInet4(w, header) })
	case *Inet6Header:
		w.WriteDocument("ipv6", func(w document.Writer) { writeInet6(w, header) })
	case RawHeader:
		w.WriteBinary("raw", header)
	}
}

// EncodeDocument renders a record as a BSON document.
func EncodeDocument(h *SampledHeader) ([]byte, error) {
	w := document.NewBSONWriter()
	WriteDocument(w, h)
	return w.Bytes()
}

func writeEthernet(w document.Writer, h *EthernetHeader) {
	w.WriteString("dst_mac", h.DstMAC.String())
	w.WriteString("src_mac", h.SrcMAC.String())
	if h.HasVLAN {
		w.WriteInt64("vlan", int64(h.VLAN))
	}
	w.WriteInt64("type", int64(h.EtherType))
	switch network := h.Network.(type) {
	case *Inet4Header:
		w.WriteDocument("ipv4", func(w document.Writer) { writeInet4(w, network) })
	case *Inet6Header:
		w.WriteDocument("ipv6", func(w document.Writer) { writeInet6(w, network) })
	}
	w.WriteBinary("raw", h.Raw)
}

func writeInet4(w document.Writer, h *Inet4Header) {
	w.WriteInt64("tos", int64(h.TOS))
	w.WriteInt64("total_length", int64(h.TotalLength))
	w.WriteInt64("identification", int64(h.Identification))
	w.WriteInt64("fragment_offset", int64(h.FragmentOffset))
	w.WriteInt64("ttl", int64(h.TTL))
	w.WriteInt64("protocol", int64(h.Protocol))
	w.WriteString("src_ip", h.SrcAddr.String())
	w.WriteString("dst_ip", h.DstAddr.String())
	if h.HasPorts {
		w.WriteInt64("src_port", int64(h.SrcPort))
		w.WriteInt64("dst_port", int64(h.DstPort))
	}
}

func writeInet6(w document.Writer, h *Inet6Header) {
	w.WriteInt64("traffic_class", int64(h.TrafficClass))
	w.WriteInt64("flow_label", int64(h.FlowLabel))
	w.WriteInt64("payload_length", int64(h.PayloadLength))
	w.WriteInt64("next_header", int64(h.NextHeader))
	w.WriteInt64("hop_limit", int64(h.HopLimit))
	w.WriteString("src_ip", h.SrcAddr.String())
	w.WriteString("dst_ip", h.DstAddr.String())
	if h.HasPorts {
		w.WriteInt64("src_port", int64(h.SrcPort))
		w.WriteInt64("dst_port", int64(h.DstPort))
	}
}

// ReadDocument parses a document rendered by WriteDocument back into
// a record.
func ReadDocument(encoded []byte) (*SampledHeader, error) {
	r, err := document.NewReader(encoded)
	if err != nil {
		return nil, err
	}
	dr := documentReader{r: r}
	h := SampledHeader{
		Protocol:    dr.protocol(),
		FrameLength: uint32(dr.readUint("frame_length", 32)),
		Stripped:    uint32(dr.readUint("stripped", 32)),
	}
	switch {
	case r.Has("ethernet"):
		h.Header = dr.ethernet("ethernet")
	case r.Has("ipv4"):
		h.Header = dr.inet4("ipv4")
	case r.Has("ipv6"):
		h.Header = dr.inet6("ipv6")
	case r.Has("raw"):
		h.Header = RawHeader(dr.readBinary("raw"))
	default:
		return nil, errors.New("document without header")
	}
	if dr.err != nil {
		return nil, dr.err
	}
	return &h, nil
}

// documentReader keeps the first error and returns zero values after
// it.
type documentReader struct {
	r   document.Reader
	err error
}

func (dr *documentReader) fail(err error) {
	if dr.err == nil && err != nil {
		dr.err = err
	}
}

func (dr *documentReader) sub(name string) *documentReader {
	r, err := dr.r.Document(name)
	dr.fail(err)
	return &documentReader{r: r, err: dr.err}
}

func (dr *documentReader) merge(sub *documentReader) {
	dr.fail(sub.err)
}

func (dr *documentReader) readUint(name string, bits int) uint64 {
	if dr.err != nil {
		return 0
	}
	v, err := dr.r.Uint(name, bits)
	dr.fail(err)
	return v
}

func (dr *documentReader) readString(name string) string {
	if dr.err != nil {
		return ""
	}
	v, err := dr.r.String(name)
	dr.fail(err)
	return v
}

func (dr *documentReader) readBinary(name string) []byte {
	if dr.err != nil {
		return nil
	}
	v, err := dr.r.Binary(name)
	dr.fail(err)
	return v
}

func (dr *documentReader) addr(name string) netip.Addr {
	s := dr.readString(name)
	if dr.err != nil {
		return netip.Addr{}
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		dr.fail(fmt.Errorf("field %q: %w", name, err))
	}
	return addr
}

func (dr *documentReader) mac(name string) net.HardwareAddr {
	s := dr.readString(name)
	if dr.err != nil {
		return nil
	}
	mac, err := net.ParseMAC(s)
	if err != nil {
		dr.fail(fmt.Errorf("field %q: %w", name, err))
	}
	return mac
}

func (dr *documentReader) protocol() HeaderProtocol {
	t, err := dr.r.Type("protocol")
	if err != nil {
		dr.fail(err)
		return 0
	}
	if t != bsontype.String {
		return HeaderProtocol(dr.readUint("protocol", 32))
	}
	name := dr.readString("protocol")
	p, ok := ParseHeaderProtocol(name)
	if !ok && dr.err == nil {
		dr.fail(fmt.Errorf("unknown protocol %q", name))
	}
	return p
}

func (dr *documentReader) ports() (bool, uint16, uint16) {
	if !dr.r.Has("src_port") {
		return false, 0, 0
	}
	return true, uint16(dr.readUint("src_port", 16)), uint16(dr.readUint("dst_port", 16))
}

func (dr *documentReader) ethernet(name string) *EthernetHeader {
	sub := dr.sub(name)
	defer dr.merge(sub)
	h := EthernetHeader{
		DstMAC:    sub.mac("dst_mac"),
		SrcMAC:    sub.mac("src_mac"),
		HasVLAN:   sub.r.Has("vlan"),
		EtherType: uint16(sub.readUint("type", 16)),
	}
	if h.HasVLAN {
		h.VLAN = uint16(sub.readUint("vlan", 12))
	}
	switch {
	case sub.r.Has("ipv4"):
		h.Network = sub.inet4("ipv4")
	case sub.r.Has("ipv6"):
		h.Network = sub.inet6("ipv6")
	}
	h.Raw = sub.readBinary("raw")
	return &h
}

func (dr *documentReader) inet4(name string) *Inet4Header {
	sub := dr.sub(name)
	defer dr.merge(sub)
	h := Inet4Header{
		TOS:            uint8(sub.readUint("tos", 8)),
		TotalLength:    uint16(sub.readUint("total_length", 16)),
		Identification: uint16(sub.readUint("identification", 16)),
		FragmentOffset: uint16(sub.readUint("fragment_offset", 13)),
		TTL:            uint8(sub.readUint("ttl", 8)),
		Protocol:       uint8(sub.readUint("protocol", 8)),
		SrcAddr:        sub.addr("src_ip"),
		DstAddr:        sub.addr("dst_ip"),
	}
	h.HasPorts, h.SrcPort, h.DstPort = sub.ports()
	return &h
}

func (dr *documentReader) inet6(name string) *Inet6Header {
	sub := dr.sub(name)
	defer dr.merge(sub)
	h := Inet6Header{
		TrafficClass:  uint8(sub.readUint("traffic_class", 8)),
		FlowLabel:     uint32(sub.readUint("flow_label", 20)),
		PayloadLength: uint16(sub.readUint("payload_length", 16)),
		NextHeader:    uint8(sub.readUint("next_header", 8)),
		HopLimit:      uint8(sub.readUint("hop_limit", 8)),
		SrcAddr:       sub.addr("src_ip"),
		DstAddr:       sub.addr("dst_ip"),
	}
	h.HasPorts, h.SrcPort, h.DstPort = sub.ports()
	return &h
}
