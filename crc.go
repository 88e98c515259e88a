// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import "hash/crc32"

// CRC32Hasher folds bytes into a running CRC-32 checksum. Implementations
// may substitute hardware-accelerated variants; the archive format requires
// the IEEE polynomial.
type CRC32Hasher interface {
	// Update folds p into the running checksum.
	Update(p []byte)
	// Sum32 returns the current checksum value.
	Sum32() uint32
	// Reset restores the initial state.
	Reset()
}

// ieeeHasher is the default CRC32Hasher over the IEEE polynomial.
type ieeeHasher struct {
	crc uint32
}

// NewCRC32 returns the default IEEE CRC32Hasher.
func NewCRC32() CRC32Hasher {
	return &ieeeHasher{}
}

func (h *ieeeHasher) Update(p []byte) {
	h.crc = crc32.Update(h.crc, crc32.IEEETable, p)
}

func (h *ieeeHasher) Sum32() uint32 {
	return h.crc
}

func (h *ieeeHasher) Reset() {
	h.crc = 0
}
