// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package xdr

import (
	"errors"
	"testing"

	"sflowhdr/common/helpers"
)

func TestPadded(t *testing.T) {
	cases := []struct {
		Length   uint32
		Expected uint64
	}{
		{0, 0},
		{1, 4},
		{3, 4},
		{4, 4},
		{5, 8},
		{10, 12},
		{0xffffffff, 0x100000000},
	}
	for _, tc := range cases {
		if got := Padded(tc.Length); got != tc.Expected {
			t.Errorf("Padded(%d) == %d, expected %d", tc.Length, got, tc.Expected)
		}
	}
}

func TestDecodeOpaque(t *testing.T) {
	cases := []struct {
		Pos         helpers.Pos
		Description string
		Input       []byte
		Value       []byte
		Consumed    uint32
		Remaining   int
		Error       error
	}{
		{
			Pos:         helpers.Mark(),
			Description: "empty",
			Input:       []byte{0, 0, 0, 0},
			Value:       []byte{},
			Consumed:    0,
		}, {
			Pos:         helpers.Mark(),
			Description: "aligned",
			Input:       []byte{0, 0, 0, 4, 1, 2, 3, 4, 0xff},
			Value:       []byte{1, 2, 3, 4},
			Consumed:    4,
			Remaining:   1,
		}, {
			Pos:         helpers.Mark(),
			Description: "padded",
			Input:       []byte{0, 0, 0, 5, 1, 2, 3, 4, 5, 0, 0, 0, 0xff},
			Value:       []byte{1, 2, 3, 4, 5},
			Consumed:    8,
			Remaining:   1,
		}, {
			Pos:         helpers.Mark(),
			Description: "non-zero padding is accepted",
			Input:       []byte{0, 0, 0, 1, 1, 0xaa, 0xbb, 0xcc},
			Value:       []byte{1},
			Consumed:    4,
		}, {
			Pos:         helpers.Mark(),
			Description: "missing length",
			Input:       []byte{0, 0, 0},
			Error:       ErrTruncatedInput,
		}, {
			Pos:         helpers.Mark(),
			Description: "payload too short",
			Input:       []byte{0, 0, 0, 10, 1, 2, 3, 4, 5, 6, 7, 8},
			Error:       ErrTruncatedInput,
		}, {
			Pos:         helpers.Mark(),
			Description: "padding missing",
			Input:       []byte{0, 0, 0, 5, 1, 2, 3, 4, 5},
			Error:       ErrTruncatedInput,
		}, {
			Pos:         helpers.Mark(),
			Description: "huge length",
			Input:       []byte{0xff, 0xff, 0xff, 0xff, 1, 2, 3, 4},
			Error:       ErrTruncatedInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.Description, func(t *testing.T) {
			c := NewCursor(tc.Input)
			got, err := DecodeOpaque(c, RawOpaque)
			if tc.Error != nil {
				if !errors.Is(err, tc.Error) {
					t.Fatalf("%sDecodeOpaque() error == %v, expected %v", tc.Pos, err, tc.Error)
				}
				return
			}
			if err != nil {
				t.Fatalf("%sDecodeOpaque() error:\n%+v", tc.Pos, err)
			}
			if diff := helpers.Diff(got.Value, tc.Value); diff != "" {
				t.Errorf("%sDecodeOpaque() (-got, +want):\n%s", tc.Pos, diff)
			}
			if got.Consumed != tc.Consumed {
				t.Errorf("%sDecodeOpaque() consumed %d, expected %d", tc.Pos, got.Consumed, tc.Consumed)
			}
			if got.Consumed%4 != 0 {
				t.Errorf("%sDecodeOpaque() consumed %d, not a multiple of 4", tc.Pos, got.Consumed)
			}
			if c.Remaining() != tc.Remaining {
				t.Errorf("%sRemaining() == %d, expected %d", tc.Pos, c.Remaining(), tc.Remaining)
			}
		})
	}
}

func TestDecodeOpaquePartialConsumption(t *testing.T) {
	c := NewCursor([]byte{0, 0, 0, 6, 1, 2, 3, 4, 5, 6, 0, 0, 9})
	got, err := DecodeOpaque(c, func(sub *Cursor) (uint16, error) {
		return sub.Uint16()
	})
	if err != nil {
		t.Fatalf("DecodeOpaque() error:\n%+v", err)
	}
	if got.Value != 0x0102 || got.Consumed != 8 {
		t.Fatalf("DecodeOpaque() == %+v", got)
	}
	if next, err := c.Uint8(); err != nil || next != 9 {
		t.Fatalf("Uint8() == %d, %v, expected 9", next, err)
	}
}

func TestDecodeOpaqueInnerError(t *testing.T) {
	c := NewCursor([]byte{0, 0, 0, 2, 1, 2, 0, 0})
	_, err := DecodeOpaque(c, func(sub *Cursor) (uint32, error) {
		return sub.Uint32()
	})
	var ipe *InvalidPacketError
	if !errors.As(err, &ipe) {
		t.Fatalf("DecodeOpaque() error == %v, expected *InvalidPacketError", err)
	}
	if !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("DecodeOpaque() error == %v, expected to wrap ErrTruncatedInput", err)
	}
}

func TestInvalid(t *testing.T) {
	if Invalid("nothing", nil) != nil {
		t.Fatal("Invalid(nil) != nil")
	}
	inner := Invalid("inner", ErrTruncatedInput)
	outer := Invalid("outer", inner)
	if outer != inner {
		t.Fatalf("Invalid() wrapped an *InvalidPacketError twice: %v", outer)
	}
	if got, expected := outer.Error(), "invalid packet: inner: truncated input"; got != expected {
		t.Fatalf("Error() == %q, expected %q", got, expected)
	}
}
