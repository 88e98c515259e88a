// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"fmt"
	"io"
)

// VerifyReader wraps a decompressed entry stream and asserts that it
// matches the central directory declared uncompressed size and CRC-32.
//
// Partial reads never fail for length reasons. The checksum comparison
// happens at the first end-of-stream read once the declared size has been
// consumed; a stream shorter or longer than declared fails with
// ErrSizeMismatch, a checksum difference with ErrCRCMismatch.
type VerifyReader struct {
	r        io.Reader
	hasher   CRC32Hasher
	wantCRC  uint32
	wantSize uint64
	read     uint64
	verified bool
}

// NewVerifyReader wraps r with the default IEEE hasher. Size and crc come
// from the entry's central directory record.
func NewVerifyReader(r io.Reader, size uint64, crc uint32) *VerifyReader {
	return NewVerifyReaderHasher(r, size, crc, NewCRC32())
}

// NewVerifyReaderHasher wraps r with a caller-supplied hasher.
func NewVerifyReaderHasher(r io.Reader, size uint64, crc uint32, hasher CRC32Hasher) *VerifyReader {
	hasher.Reset()

	return &VerifyReader{r: r, hasher: hasher, wantCRC: crc, wantSize: size}
}

// Read implements io.Reader.
func (v *VerifyReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.hasher.Update(p[:n])
		v.read += uint64(n)

		if v.read > v.wantSize {
			return n, fmt.Errorf("%w: stream exceeds declared %d bytes", ErrSizeMismatch, v.wantSize)
		}
	}

	if err == io.EOF {
		if verifyErr := v.verify(); verifyErr != nil {
			return n, verifyErr
		}
	}

	return n, err
}

// verify runs the end-of-stream comparison once.
func (v *VerifyReader) verify() error {
	if v.verified {
		return nil
	}

	if v.read != v.wantSize {
		return fmt.Errorf("%w: declared %d bytes, stream has %d", ErrSizeMismatch, v.wantSize, v.read)
	}

	if got := v.hasher.Sum32(); got != v.wantCRC {
		return fmt.Errorf("%w: declared %08x, stream has %08x", ErrCRCMismatch, v.wantCRC, got)
	}

	v.verified = true

	return nil
}

// BytesRead returns the number of verified bytes consumed so far.
func (v *VerifyReader) BytesRead() uint64 {
	return v.read
}
