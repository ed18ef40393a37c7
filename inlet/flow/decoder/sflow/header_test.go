// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"sflowhdr/common/helpers"
	"sflowhdr/common/xdr"
)

var (
	testSrcMAC = net.HardwareAddr{0x00, 0x1c, 0x73, 0x10, 0x20, 0x30}
	testDstMAC = net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}
)

// tcp4Frame returns an Ethernet frame with an IPv4/TCP packet.
func tcp4Frame(t *testing.T, vlans ...uint16) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      0x28,
		Id:       4321,
		TTL:      59,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP("104.26.8.24").To4(),
		DstIP:    net.ParseIP("45.90.161.46").To4(),
	}
	tcp := helpers.TransportFor(t, &layers.TCP{
		SrcPort: 443,
		DstPort: 56876,
		ACK:     true,
		Window:  1024,
	}, ip)
	return helpers.SerializePacket(t,
		append(ethernetLayers(layers.EthernetTypeIPv4, vlans...),
			ip, tcp, gopacket.Payload("hello"))...)
}

// udp6Frame returns an Ethernet frame with an IPv6/UDP packet.
func udp6Frame(t *testing.T, vlans ...uint16) []byte {
	t.Helper()
	ip := &layers.IPv6{
		Version:      6,
		TrafficClass: 0x20,
		FlowLabel:    0x12345,
		NextHeader:   layers.IPProtocolUDP,
		HopLimit:     63,
		SrcIP:        net.ParseIP("2a0c:8880:2:0:185:21:130:38"),
		DstIP:        net.ParseIP("2a0c:8880:2:0:185:21:130:39"),
	}
	udp := helpers.TransportFor(t, &layers.UDP{
		SrcPort: 33001,
		DstPort: 33000,
	}, ip)
	return helpers.SerializePacket(t,
		append(ethernetLayers(layers.EthernetTypeIPv6, vlans...),
			ip, udp, gopacket.Payload("ping"))...)
}

// arpFrame returns an Ethernet frame carrying an ARP request.
func arpFrame(t *testing.T) []byte {
	t.Helper()
	return helpers.SerializePacket(t,
		append(ethernetLayers(layers.EthernetTypeARP),
			&layers.ARP{
				AddrType:          layers.LinkTypeEthernet,
				Protocol:          layers.EthernetTypeIPv4,
				HwAddressSize:     6,
				ProtAddressSize:   4,
				Operation:         layers.ARPRequest,
				SourceHwAddress:   testSrcMAC,
				SourceProtAddress: []byte{192, 0, 2, 1},
				DstHwAddress:      make([]byte, 6),
				DstProtAddress:    []byte{192, 0, 2, 2},
			})...)
}

// ethernetLayers returns the Ethernet layer and one tag per VLAN,
// outermost first. With several tags, the outer one is 802.1ad.
func ethernetLayers(final layers.EthernetType, vlans ...uint16) []gopacket.SerializableLayer {
	next := func(i int) layers.EthernetType {
		switch {
		case i == 0 && len(vlans) > 1:
			return layers.EthernetTypeQinQ
		case i < len(vlans):
			return layers.EthernetTypeDot1Q
		}
		return final
	}
	result := []gopacket.SerializableLayer{&layers.Ethernet{
		SrcMAC:       testSrcMAC,
		DstMAC:       testDstMAC,
		EthernetType: next(0),
	}}
	for i, vlan := range vlans {
		result = append(result, &layers.Dot1Q{
			VLANIdentifier: vlan,
			Priority:       3,
			Type:           next(i + 1),
		})
	}
	return result
}

func expectedTCP4() *Inet4Header {
	return &Inet4Header{
		TOS:            0x28,
		TotalLength:    20 + 20 + 5,
		Identification: 4321,
		TTL:            59,
		Protocol:       helpers.ProtoTCP,
		SrcAddr:        netip.MustParseAddr("104.26.8.24"),
		DstAddr:        netip.MustParseAddr("45.90.161.46"),
		HasPorts:       true,
		SrcPort:        443,
		DstPort:        56876,
	}
}

func expectedUDP6() *Inet6Header {
	return &Inet6Header{
		TrafficClass:  0x20,
		FlowLabel:     0x12345,
		PayloadLength: 8 + 4,
		NextHeader:    helpers.ProtoUDP,
		HopLimit:      63,
		SrcAddr:       netip.MustParseAddr("2a0c:8880:2:0:185:21:130:38"),
		DstAddr:       netip.MustParseAddr("2a0c:8880:2:0:185:21:130:39"),
		HasPorts:      true,
		SrcPort:       33001,
		DstPort:       33000,
	}
}

func TestDecodeSampledHeader(t *testing.T) {
	tcp4 := tcp4Frame(t)
	udp6 := udp6Frame(t)
	tcp4Vlan := tcp4Frame(t, 100)
	udp6QinQ := udp6Frame(t, 10, 200)
	arp := helpers.SerializePacket(t,
		&layers.Ethernet{
			SrcMAC:       testSrcMAC,
			DstMAC:       layers.EthernetBroadcast,
			EthernetType: layers.EthernetTypeARP,
		},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   testSrcMAC,
			SourceProtAddress: []byte{192, 0, 2, 1},
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    []byte{192, 0, 2, 2},
		})

	cases := []struct {
		Pos         helpers.Pos
		Description string
		Input       []byte
		Expected    *SampledHeader
	}{
		{
			Pos:         helpers.Mark(),
			Description: "Ethernet with IPv4/TCP",
			Input:       EncodeRecord(HeaderProtocolEthernet, 1518, 4, tcp4),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolEthernet,
				FrameLength: 1518,
				Stripped:    4,
				Header: &EthernetHeader{
					DstMAC:    testDstMAC,
					SrcMAC:    testSrcMAC,
					EtherType: helpers.ETypeIPv4,
					Network:   expectedTCP4(),
					Raw:       tcp4,
				},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "Ethernet with VLAN and IPv4/TCP",
			Input:       EncodeRecord(HeaderProtocolEthernet, 1522, 4, tcp4Vlan),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolEthernet,
				FrameLength: 1522,
				Stripped:    4,
				Header: &EthernetHeader{
					DstMAC:    testDstMAC,
					SrcMAC:    testSrcMAC,
					HasVLAN:   true,
					VLAN:      100,
					EtherType: helpers.ETypeIPv4,
					Network:   expectedTCP4(),
					Raw:       tcp4Vlan,
				},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "Ethernet with two VLAN tags and IPv6/UDP",
			Input:       EncodeRecord(HeaderProtocolEthernet, 90, 4, udp6QinQ),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolEthernet,
				FrameLength: 90,
				Stripped:    4,
				Header: &EthernetHeader{
					DstMAC:    testDstMAC,
					SrcMAC:    testSrcMAC,
					HasVLAN:   true,
					VLAN:      200,
					EtherType: helpers.ETypeIPv6,
					Network:   expectedUDP6(),
					Raw:       udp6QinQ,
				},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "Ethernet with ARP",
			Input:       EncodeRecord(HeaderProtocolEthernet, 64, 4, arp),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolEthernet,
				FrameLength: 64,
				Stripped:    4,
				Header: &EthernetHeader{
					DstMAC:    net.HardwareAddr(layers.EthernetBroadcast),
					SrcMAC:    testSrcMAC,
					EtherType: 0x0806,
					Raw:       arp,
				},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "IPv4/TCP",
			Input:       EncodeRecord(HeaderProtocolIPv4, 45, 0, tcp4[14:]),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolIPv4,
				FrameLength: 45,
				Header:      expectedTCP4(),
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "IPv6/UDP",
			Input:       EncodeRecord(HeaderProtocolIPv6, 52, 0, udp6[14:]),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolIPv6,
				FrameLength: 52,
				Header:      expectedUDP6(),
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "IPv4 without ports captured",
			Input:       EncodeRecord(HeaderProtocolIPv4, 1500, 0, tcp4[14:34]),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolIPv4,
				FrameLength: 1500,
				Header: func() *Inet4Header {
					h := expectedTCP4()
					h.HasPorts, h.SrcPort, h.DstPort = false, 0, 0
					return h
				}(),
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "unknown protocol",
			Input:       EncodeRecord(HeaderProtocol(0xffffffff), 100, 4, []byte{1, 2, 3, 4, 5}),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocol(0xffffffff),
				FrameLength: 100,
				Stripped:    4,
				Header:      RawHeader{1, 2, 3, 4, 5},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "known but undecoded protocol",
			Input:       EncodeRecord(HeaderProtocolMPLS, 100, 0, []byte{0, 1, 0x41, 0x40}),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolMPLS,
				FrameLength: 100,
				Header:      RawHeader{0, 1, 0x41, 0x40},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "empty raw header",
			Input:       EncodeRecord(HeaderProtocolPPP, 0, 0, nil),
			Expected: &SampledHeader{
				Protocol: HeaderProtocolPPP,
				Header:   RawHeader{},
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "stripped larger than frame length is accepted",
			Input:       EncodeRecord(HeaderProtocolFDDI, 10, 20, []byte{9}),
			Expected: &SampledHeader{
				Protocol:    HeaderProtocolFDDI,
				FrameLength: 10,
				Stripped:    20,
				Header:      RawHeader{9},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.Description, func(t *testing.T) {
			got, err := DecodeSampledHeader(tc.Input)
			if err != nil {
				t.Fatalf("%sDecodeSampledHeader() error:\n%+v", tc.Pos, err)
			}
			if diff := helpers.Diff(got, tc.Expected); diff != "" {
				t.Fatalf("%sDecodeSampledHeader() (-got, +want):\n%s", tc.Pos, diff)
			}
		})
	}
}

func TestDecodeSampledHeaderErrors(t *testing.T) {
	tcp4 := tcp4Frame(t)
	cases := []struct {
		Pos         helpers.Pos
		Description string
		Input       []byte
	}{
		{helpers.Mark(), "empty", []byte{}},
		{helpers.Mark(), "protocol only", []byte{0, 0, 0, 1}},
		{helpers.Mark(), "no stripped", []byte{0, 0, 0, 1, 0, 0, 0, 64, 0, 0}},
		{helpers.Mark(), "no opaque length", []byte{0, 0, 0, 1, 0, 0, 0, 64, 0, 0, 0, 4}},
		{
			helpers.Mark(), "opaque longer than input",
			append([]byte{0, 0, 0, 11, 0, 0, 0, 64, 0, 0, 0, 0, 0, 0, 0, 10}, make([]byte, 8)...),
		},
		{
			helpers.Mark(), "padding missing",
			append([]byte{0, 0, 0, 99, 0, 0, 0, 64, 0, 0, 0, 0, 0, 0, 0, 10}, make([]byte, 10)...),
		},
		{helpers.Mark(), "short Ethernet", EncodeRecord(HeaderProtocolEthernet, 64, 0, tcp4[:13])},
		{helpers.Mark(), "truncated VLAN tag", EncodeRecord(HeaderProtocolEthernet, 64, 0, tcp4Frame(t, 10)[:16])},
		{helpers.Mark(), "truncated embedded IPv4", EncodeRecord(HeaderProtocolEthernet, 64, 0, tcp4[:33])},
		{helpers.Mark(), "truncated embedded IPv6", EncodeRecord(HeaderProtocolEthernet, 64, 0, udp6Frame(t)[:53])},
		{helpers.Mark(), "short IPv4", EncodeRecord(HeaderProtocolIPv4, 64, 0, tcp4[14:33])},
		{helpers.Mark(), "short IPv6", EncodeRecord(HeaderProtocolIPv6, 64, 0, udp6Frame(t)[14:53])},
	}
	for _, tc := range cases {
		t.Run(tc.Description, func(t *testing.T) {
			got, err := DecodeSampledHeader(tc.Input)
			if err == nil {
				t.Fatalf("%sDecodeSampledHeader() did not error", tc.Pos)
			}
			if got != nil {
				t.Errorf("%sDecodeSampledHeader() returned a partial record: %+v", tc.Pos, got)
			}
			if !errors.Is(err, xdr.ErrTruncatedInput) {
				t.Errorf("%sDecodeSampledHeader() error == %v, expected ErrTruncatedInput", tc.Pos, err)
			}
			var ipe *xdr.InvalidPacketError
			if !errors.As(err, &ipe) {
				t.Errorf("%sDecodeSampledHeader() error == %v, expected *InvalidPacketError", tc.Pos, err)
			}
		})
	}
}

func TestShortBuffersNeverDecode(t *testing.T) {
	full := EncodeRecord(HeaderProtocolEthernet, 64, 0, tcp4Frame(t))
	for n := 0; n < 12; n++ {
		if _, err := DecodeSampledHeader(full[:n]); !errors.Is(err, xdr.ErrTruncatedInput) {
			t.Errorf("DecodeSampledHeader(%d bytes) error == %v", n, err)
		}
	}
	// Any truncation of the record fails as well.
	for n := 12; n < len(full); n++ {
		if _, err := DecodeSampledHeader(full[:n]); err == nil {
			t.Errorf("DecodeSampledHeader(%d bytes) did not error", n)
		}
	}
}

func TestHoistedHeaders(t *testing.T) {
	tcp4 := tcp4Frame(t, 42)
	h, err := DecodeSampledHeader(EncodeRecord(HeaderProtocolEthernet, 64, 0, tcp4))
	if err != nil {
		t.Fatalf("DecodeSampledHeader() error:\n%+v", err)
	}
	direct, err := DecodeInet4Header(tcp4[18:])
	if err != nil {
		t.Fatalf("DecodeInet4Header() error:\n%+v", err)
	}
	if diff := helpers.Diff(h.Inet4(), direct); diff != "" {
		t.Fatalf("Inet4() (-got, +want):\n%s", diff)
	}
	if h.Inet4() != h.Ethernet().Inet4() {
		t.Fatal("Inet4() is not the header owned by the Ethernet header")
	}
	if h.Inet6() != nil || h.Raw() != nil {
		t.Fatal("Inet6() or Raw() should be nil")
	}

	udp6 := udp6Frame(t)
	h, err = DecodeSampledHeader(EncodeRecord(HeaderProtocolEthernet, 64, 0, udp6))
	if err != nil {
		t.Fatalf("DecodeSampledHeader() error:\n%+v", err)
	}
	direct6, err := DecodeInet6Header(udp6[14:])
	if err != nil {
		t.Fatalf("DecodeInet6Header() error:\n%+v", err)
	}
	if diff := helpers.Diff(h.Inet6(), direct6); diff != "" {
		t.Fatalf("Inet6() (-got, +want):\n%s", diff)
	}
	if h.Inet4() != nil {
		t.Fatal("Inet4() should be nil")
	}
}

func TestDecodeAgainstGopacket(t *testing.T) {
	for _, frame := range [][]byte{tcp4Frame(t), tcp4Frame(t, 7), udp6Frame(t), udp6Frame(t, 1, 2)} {
		h, err := DecodeEthernetHeader(frame)
		if err != nil {
			t.Fatalf("DecodeEthernetHeader() error:\n%+v", err)
		}
		packet := helpers.DecodePacket(t, frame, layers.LayerTypeEthernet)
		eth := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
		if h.SrcMAC.String() != eth.SrcMAC.String() || h.DstMAC.String() != eth.DstMAC.String() {
			t.Errorf("DecodeEthernetHeader() MAC mismatch: %s/%s", h.SrcMAC, h.DstMAC)
		}
		if ip4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
			got := h.Inet4()
			if got == nil || got.SrcAddr.String() != ip4.SrcIP.String() ||
				got.DstAddr.String() != ip4.DstIP.String() || got.TotalLength != ip4.Length {
				t.Errorf("DecodeEthernetHeader() IPv4 mismatch: %+v", got)
			}
		}
		if ip6, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
			got := h.Inet6()
			if got == nil || got.SrcAddr.String() != ip6.SrcIP.String() ||
				got.FlowLabel != ip6.FlowLabel || got.PayloadLength != ip6.Length {
				t.Errorf("DecodeEthernetHeader() IPv6 mismatch: %+v", got)
			}
			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok {
				t.Fatal("NewPacket() did not decode the UDP layer")
			}
			if got == nil || !got.HasPorts ||
				got.SrcPort != uint16(udp.SrcPort) || got.DstPort != uint16(udp.DstPort) {
				t.Errorf("DecodeEthernetHeader() UDP ports mismatch: %+v", got)
			}
		}
	}
}

func TestInet4Ports(t *testing.T) {
	base := func() *layers.IPv4 {
		return &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP{192, 0, 2, 1},
			DstIP:    net.IP{192, 0, 2, 2},
		}
	}
	udp := func(ip *layers.IPv4) []byte {
		return helpers.SerializePacket(t, ip,
			helpers.TransportFor(t, &layers.UDP{SrcPort: 1000, DstPort: 2000}, ip))
	}

	t.Run("first fragment", func(t *testing.T) {
		ip := base()
		ip.Flags = layers.IPv4MoreFragments
		h, err := DecodeInet4Header(udp(ip))
		if err != nil || !h.HasPorts || h.SrcPort != 1000 || h.DstPort != 2000 {
			t.Fatalf("DecodeInet4Header() == %+v, %v", h, err)
		}
	})
	t.Run("non-first fragment", func(t *testing.T) {
		ip := base()
		ip.FragOffset = 100
		h, err := DecodeInet4Header(udp(ip))
		if err != nil || h.HasPorts || h.FragmentOffset != 100 {
			t.Fatalf("DecodeInet4Header() == %+v, %v", h, err)
		}
	})
	t.Run("options", func(t *testing.T) {
		ip := base()
		ip.Options = []layers.IPv4Option{{OptionType: 1}, {OptionType: 1}, {OptionType: 1}, {OptionType: 1}}
		data := udp(ip)
		if data[0]&0xf != 6 {
			t.Fatalf("IHL == %d, expected 6", data[0]&0xf)
		}
		h, err := DecodeInet4Header(data)
		if err != nil || !h.HasPorts || h.SrcPort != 1000 || h.DstPort != 2000 {
			t.Fatalf("DecodeInet4Header() == %+v, %v", h, err)
		}
		// Options not entirely captured
		h, err = DecodeInet4Header(data[:22])
		if err != nil || h.HasPorts {
			t.Fatalf("DecodeInet4Header() == %+v, %v", h, err)
		}
	})
	t.Run("ICMP", func(t *testing.T) {
		ip := base()
		ip.Protocol = layers.IPProtocolICMPv4
		data := helpers.SerializePacket(t, ip,
			&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)})
		h, err := DecodeInet4Header(data)
		if err != nil || h.HasPorts || h.Protocol != 1 {
			t.Fatalf("DecodeInet4Header() == %+v, %v", h, err)
		}
	})
}
