// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package sflow

import (
	"errors"
	"fmt"
)

// Visitor is called for each node of a decoded record by Walk.
type Visitor interface {
	VisitSampledHeader(*SampledHeader)
	VisitEthernetHeader(*EthernetHeader)
	VisitInet4Header(*Inet4Header)
	VisitInet6Header(*Inet6Header)
}

// TraversalMode selects which nodes Walk visits.
type TraversalMode int

const (
	// TraversalHoisted visits the sampled header, then the IPv4 and
	// IPv6 headers through the hoisted accessors. The Ethernet header
	// is not visited.
	TraversalHoisted TraversalMode = iota
	// TraversalFullTree visits the sampled header, the Ethernet header
	// and its network header, then the hoisted headers. The network
	// header of an Ethernet frame is therefore visited twice.
	TraversalFullTree
)

// Walk visits the record in pre-order.
func Walk(h *SampledHeader, v Visitor, mode TraversalMode) {
	v.VisitSampledHeader(h)
	if mode == TraversalFullTree {
		if ethernet := h.Ethernet(); ethernet != nil {
			v.VisitEthernetHeader(ethernet)
			if inet4 := ethernet.Inet4(); inet4 != nil {
				v.VisitInet4Header(inet4)
			}
			if inet6 := ethernet.Inet6(); inet6 != nil {
				v.VisitInet6Header(inet6)
			}
		}
	}
	if inet4 := h.Inet4(); inet4 != nil {
		v.VisitInet4Header(inet4)
	}
	if inet6 := h.Inet6(); inet6 != nil {
		v.VisitInet6Header(inet6)
	}
}

func (m TraversalMode) String() string {
	switch m {
	case TraversalHoisted:
		return "hoisted"
	case TraversalFullTree:
		return "full-tree"
	}
	return fmt.Sprintf("TraversalMode(%d)", int(m))
}

// MarshalText turns a traversal mode into text.
func (m TraversalMode) MarshalText() ([]byte, error) {
	switch m {
	case TraversalHoisted, TraversalFullTree:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("unknown traversal mode %d", int(m))
}

// UnmarshalText parses a traversal mode.
func (m *TraversalMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hoisted":
		*m = TraversalHoisted
	case "full-tree":
		*m = TraversalFullTree
	default:
		return errors.New("traversal mode should be hoisted or full-tree")
	}
	return nil
}

// VisitorFuncs implements Visitor with optional functions.
type VisitorFuncs struct {
	SampledHeader  func(*SampledHeader)
	EthernetHeader func(*EthernetHeader)
	Inet4Header    func(*Inet4Header)
	Inet6Header    func(*Inet6Header)
}

// VisitSampledHeader calls SampledHeader if set.
func (vf VisitorFuncs) VisitSampledHeader(h *SampledHeader) {
	if vf.SampledHeader != nil {
		vf.SampledHeader(h)
	}
}

// VisitEthernetHeader calls EthernetHeader if set.
func (vf VisitorFuncs) VisitEthernetHeader(h *EthernetHeader) {
	if vf.EthernetHeader != nil {
		vf.EthernetHeader(h)
	}
}

// VisitInet4Header calls Inet4Header if set.
func (vf VisitorFuncs) VisitInet4Header(h *Inet4Header) {
	if vf.Inet4Header != nil {
		vf.Inet4Header(h)
	}
}

// VisitInet6Header calls Inet6Header if set.
func (vf VisitorFuncs) VisitInet6Header(h *Inet6Header) {
	if vf.Inet6Header != nil {
		vf.Inet6Header(h)
	}
}
