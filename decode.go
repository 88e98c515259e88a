// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import "encoding/binary"

// cursor is a little-endian sequential reader over a byte slice.
// Fixed-width reads assume the caller validated the record length first.
type cursor struct {
	buf []byte
	pos int
}

// newCursor returns a cursor positioned at the start of buf.
func newCursor(buf []byte) cursor {
	return cursor{buf: buf}
}

// avail returns the number of unread bytes.
func (c *cursor) avail() int {
	return len(c.buf) - c.pos
}

// u16 reads the next little-endian uint16.
func (c *cursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2

	return v
}

// u32 reads the next little-endian uint32.
func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4

	return v
}

// u64 reads the next little-endian uint64.
func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8

	return v
}

// take borrows the next n bytes without copying.
func (c *cursor) take(n int) ([]byte, bool) {
	if n < 0 || c.avail() < n {
		return nil, false
	}

	out := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n

	return out, true
}

// skip advances past n bytes.
func (c *cursor) skip(n int) bool {
	if n < 0 || c.avail() < n {
		return false
	}

	c.pos += n

	return true
}

// boundedView returns src[off:off+n] after validating the range fits.
func boundedView(src []byte, off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(src)) {
		return nil, ErrTruncated
	}

	return src[off:end:end], nil
}

// appendU16 appends v to dst in little-endian order.
func appendU16(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

// appendU32 appends v to dst in little-endian order.
func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// appendU64 appends v to dst in little-endian order.
func appendU64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}
