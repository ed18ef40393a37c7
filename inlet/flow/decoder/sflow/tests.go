// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package sflow

import "encoding/binary"

// EncodeRecord builds a sampled_header record around the provided
// header bytes, with zero padding.
func EncodeRecord(protocol HeaderProtocol, frameLength, stripped uint32, header []byte) []byte {
	padded := (len(header) + 3) &^ 3
	out := make([]byte, 16, 16+padded)
	binary.BigEndian.PutUint32(out[0:], uint32(protocol))
	binary.BigEndian.PutUint32(out[4:], frameLength)
	binary.BigEndian.PutUint32(out[8:], stripped)
	binary.BigEndian.PutUint32(out[12:], uint32(len(header)))
	out = append(out, header...)
	return append(out, make([]byte, padded-len(header))...)
}
