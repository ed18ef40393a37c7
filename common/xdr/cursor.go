// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package xdr implements a bounds-checked reader for XDR-encoded
// (RFC 4506) payloads, as found in sFlow datagrams.
package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncatedInput is returned when a read needs more bytes than
// available in the current view.
var ErrTruncatedInput = errors.New("truncated input")

// Cursor is a read position over an immutable byte slice. All reads
// are big-endian and never go past the end of the view. A cursor is not
// safe for concurrent use, but several cursors can share the same
// buffer.
type Cursor struct {
	buf []byte
	off int
	// base is the offset of buf inside the outermost buffer. It is only
	// used to report errors.
	base int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// Offset returns the absolute offset of the cursor, relative to the
// outermost buffer.
func (c *Cursor) Offset() int {
	return c.base + c.off
}

func (c *Cursor) need(n int) error {
	if n < 0 || n > c.Remaining() {
		return fmt.Errorf("%w: need %d bytes at offset %d, %d available",
			ErrTruncatedInput, n, c.Offset(), c.Remaining())
	}
	return nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

// Uint16 reads a big-endian 16-bit integer.
func (c *Cursor) Uint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

// Uint32 reads a big-endian 32-bit integer.
func (c *Cursor) Uint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

// Bytes returns the next n bytes and advances. The returned slice
// aliases the underlying buffer and has its capacity clipped to n.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.off : c.off+n : c.off+n]
	c.off += n
	return v, nil
}

// Skip advances by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// Sub returns a new cursor over the next n bytes. The parent cursor is
// not advanced.
func (c *Cursor) Sub(n int) (*Cursor, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	return &Cursor{
		buf:  c.buf[c.off : c.off+n : c.off+n],
		base: c.base + c.off,
	}, nil
}

// Rest returns the unread bytes without advancing.
func (c *Cursor) Rest() []byte {
	return c.buf[c.off:len(c.buf):len(c.buf)]
}
