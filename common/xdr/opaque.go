// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package xdr

import (
	"errors"
	"fmt"
)

// InvalidPacketError is returned when a structure cannot be decoded.
// It wraps the underlying error, which may be ErrTruncatedInput.
type InvalidPacketError struct {
	What string
	Err  error
}

func (e *InvalidPacketError) Error() string {
	if e.What == "" {
		return fmt.Sprintf("invalid packet: %s", e.Err)
	}
	return fmt.Sprintf("invalid packet: %s: %s", e.What, e.Err)
}

// Unwrap returns the wrapped error.
func (e *InvalidPacketError) Unwrap() error {
	return e.Err
}

// Invalid wraps err into an *InvalidPacketError, unless it already is
// one.
func Invalid(what string, err error) error {
	if err == nil {
		return nil
	}
	var ipe *InvalidPacketError
	if errors.As(err, &ipe) {
		return err
	}
	return &InvalidPacketError{What: what, Err: err}
}

// Opaque is the result of decoding an XDR variable-length opaque.
// Consumed is the number of bytes used in the parent view, excluding
// the length prefix: the payload length rounded up to 4.
type Opaque[T any] struct {
	Value    T
	Consumed uint32
}

// Padded returns length rounded up to the next multiple of 4.
func Padded(length uint32) uint64 {
	return (uint64(length) + 3) &^ 3
}

// DecodeOpaque reads an opaque<> from c: a length, then the payload,
// then padding up to a 4-byte boundary. decode receives a view limited
// to the payload. The parent cursor always moves past the padding, even
// when decode does not consume the whole view. Errors from decode are
// wrapped into an *InvalidPacketError.
func DecodeOpaque[T any](c *Cursor, decode func(*Cursor) (T, error)) (Opaque[T], error) {
	var result Opaque[T]
	length, err := c.Uint32()
	if err != nil {
		return result, err
	}
	padded := Padded(length)
	if padded > uint64(c.Remaining()) {
		return result, fmt.Errorf("%w: opaque of %d bytes (%d with padding) at offset %d, %d available",
			ErrTruncatedInput, length, padded, c.Offset(), c.Remaining())
	}
	sub, err := c.Sub(int(length))
	if err != nil {
		return result, err
	}
	value, err := decode(sub)
	if err != nil {
		return result, Invalid("opaque payload", err)
	}
	if err := c.Skip(int(padded)); err != nil {
		return result, err
	}
	result.Value = value
	result.Consumed = uint32(padded)
	return result, nil
}

// RawOpaque is a decoder for DecodeOpaque returning a copy of the
// payload.
func RawOpaque(c *Cursor) ([]byte, error) {
	rest := c.Rest()
	out := make([]byte, len(rest))
	copy(out, rest)
	return out, c.Skip(len(rest))
}
