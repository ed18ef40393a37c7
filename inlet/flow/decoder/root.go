// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package decoder handles the protocol-independent part of flow
// decoding.
package decoder

import (
	"net/netip"
	"time"
)

// DocumentVersion is the version of the document layout. It is bumped
// on incompatible changes and is part of the Kafka topic name.
const DocumentVersion = 1

// Decoder is the interface each decoder should implement.
type Decoder interface {
	// Decode takes a raw flow and returns the decoded message. On
	// error, no message is returned.
	Decode(in RawFlow) (*Message, error)

	// Name returns the decoder name
	Name() string
}

// RawFlow is an undecoded flow.
type RawFlow struct {
	TimeReceived time.Time
	Payload      []byte
	Source       netip.Addr
}

// Message is a decoded flow, rendered as a document.
type Message struct {
	TimeReceived time.Time
	Exporter     netip.Addr
	// Protocol is the name of the sampled header protocol.
	Protocol string
	// Document is the BSON rendering of the decoded record.
	Document []byte
}
