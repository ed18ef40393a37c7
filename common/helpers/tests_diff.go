// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package helpers

import (
	"net/netip"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// diffOptions are applied to every Diff() call.
var diffOptions = cmp.Options{
	cmpopts.EquateComparable(netip.Addr{}, netip.Prefix{}),
	cmpopts.EquateErrors(),
}

// RegisterCmpOption adds an option applied to every Diff() call. It is
// meant to be called from init().
func RegisterCmpOption(option cmp.Option) {
	diffOptions = append(diffOptions, option)
}

// Diff returns a human-readable diff between got and want, or an empty
// string when they are equal.
func Diff(got, want any, options ...cmp.Option) string {
	return cmp.Diff(got, want, append(cmp.Options{diffOptions}, options...)...)
}
