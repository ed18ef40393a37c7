// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package helpers

import (
	"testing"

	"github.com/google/gopacket"
)

// SerializePacket serializes the provided layers into a frame, fixing
// lengths and computing checksums.
func SerializePacket(t testing.TB, l ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		t.Fatalf("SerializeLayers() error:\n%+v", err)
	}
	return buf.Bytes()
}

// DecodePacket decodes a frame starting with the provided layer. It is
// used to cross-check our own decoders.
func DecodePacket(t testing.TB, data []byte, first gopacket.LayerType) gopacket.Packet {
	t.Helper()
	packet := gopacket.NewPacket(data, first, gopacket.DecodeOptions{
		Lazy:   false,
		NoCopy: true,
	})
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		t.Fatalf("NewPacket() error:\n%+v", errLayer.Error())
	}
	return packet
}

// TransportFor sets up the network layer used to compute transport
// checksums and returns the transport layer.
func TransportFor[T interface {
	gopacket.SerializableLayer
	SetNetworkLayerForChecksum(gopacket.NetworkLayer) error
}](t testing.TB, transport T, network gopacket.NetworkLayer) T {
	t.Helper()
	if err := transport.SetNetworkLayerForChecksum(network); err != nil {
		t.Fatalf("SetNetworkLayerForChecksum() error:\n%+v", err)
	}
	return transport
}
