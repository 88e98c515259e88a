// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"encoding/binary"
	"fmt"
)

// eocdLocation is a validated EOCD position with its parsed fixed record.
type eocdLocation struct {
	record eocdRecord
	// offset is the absolute source offset of the EOCD signature.
	offset uint64
}

// locateEOCD scans window backwards for the EOCD signature. The window's
// first byte lies at absolute source offset base.
//
// The rightmost signature candidate decides the outcome: it is accepted
// when its fixed record fits in the window and its declared comment does
// not extend past the window end, otherwise a FalseEOCDError carrying the
// candidate offset is returned so callers can retry with a constrained end
// offset. No signature at all yields ErrMissingEOCD.
func locateEOCD(window []byte, base uint64) (eocdLocation, error) {
	for k := len(window) - 4; k >= 0; k-- {
		if binary.LittleEndian.Uint32(window[k:]) != sigEOCD {
			continue
		}

		abs := base + uint64(k)
		if k+eocdLen > len(window) {
			return eocdLocation{}, &FalseEOCDError{Offset: abs}
		}

		rec := parseEOCD(window[k:])
		if int(rec.commentLen) > len(window)-k-eocdLen {
			return eocdLocation{}, &FalseEOCDError{Offset: abs}
		}

		return eocdLocation{record: rec, offset: abs}, nil
	}

	return eocdLocation{}, ErrMissingEOCD
}

// tailWindowStart returns the absolute start offset of the EOCD search
// window for a source searched up to end.
func tailWindowStart(end uint64) uint64 {
	if end <= maxTailWindow {
		return 0
	}

	return end - maxTailWindow
}

// archiveLayout is the resolved archive geometry shared by slice and reader
// archives.
type archiveLayout struct {
	// eocdOffset is the absolute EOCD signature offset.
	eocdOffset uint64
	// cdOffset is the absolute central directory start.
	cdOffset uint64
	// cdSize is the central directory length in bytes.
	cdSize uint64
	// entriesTotal is the declared entry count.
	entriesTotal uint64
	// baseOffset is the slide applied to stored offsets when prelude data
	// precedes the archive without adjusted offsets.
	baseOffset uint64
	// commentOffset is the absolute archive comment start.
	commentOffset uint64
	// commentLen is the archive comment length.
	commentLen int
	// zip64 reports whether an EOCD64 record was resolved.
	zip64 bool
}

// resolveLayout derives the archive geometry from a located EOCD. readAt
// provides bounded views of the source for EOCD64 resolution; it is handed
// an absolute offset and a length and returns the bytes or an error.
func resolveLayout(loc eocdLocation, srcLen uint64, readAt func(off, n uint64) ([]byte, error)) (archiveLayout, error) {
	rec := loc.record
	if !multiDiskOK16(rec.diskNumber) || !multiDiskOK16(rec.cdStartDisk) {
		return archiveLayout{}, fmt.Errorf("%w: multi-disk archives are not supported", ErrInvalidField)
	}

	layout := archiveLayout{
		eocdOffset:    loc.offset,
		cdOffset:      uint64(rec.cdOffset),
		cdSize:        uint64(rec.cdSize),
		entriesTotal:  uint64(rec.entriesTotal),
		commentOffset: loc.offset + eocdLen,
		commentLen:    int(rec.commentLen),
	}

	if layout.commentOffset+uint64(layout.commentLen) > srcLen {
		return archiveLayout{}, ErrTruncated
	}

	// End of the central directory region: the EOCD itself, or the EOCD64
	// record when the EOCD carries sentinels.
	cdEnd := loc.offset

	if rec.needsZip64() {
		if loc.offset < eocd64LocatorLen+eocd64Len {
			return archiveLayout{}, ErrTruncated
		}

		locBytes, err := readAt(loc.offset-eocd64LocatorLen, eocd64LocatorLen)
		if err != nil {
			return archiveLayout{}, err
		}

		locator, err := parseEOCD64Locator(locBytes)
		if err != nil {
			return archiveLayout{}, err
		}

		if !multiDiskOK32(locator.eocd64Disk) || locator.totalDisks > 1 {
			return archiveLayout{}, fmt.Errorf("%w: multi-disk archives are not supported", ErrInvalidField)
		}

		// Prefer the stored EOCD64 offset; fall back to the position
		// implied by the locator when prelude data left it stale.
		eocd64Offset := locator.eocd64Offset
		recBytes, err := readAt(eocd64Offset, eocd64Len)
		if err == nil {
			if _, parseErr := parseEOCD64(recBytes); parseErr != nil {
				err = parseErr
			}
		}

		if err != nil {
			eocd64Offset = loc.offset - eocd64LocatorLen - eocd64Len
			recBytes, err = readAt(eocd64Offset, eocd64Len)
			if err != nil {
				return archiveLayout{}, err
			}
		}

		rec64, err := parseEOCD64(recBytes)
		if err != nil {
			return archiveLayout{}, err
		}

		if !multiDiskOK32(rec64.diskNumber) || !multiDiskOK32(rec64.cdStartDisk) {
			return archiveLayout{}, fmt.Errorf("%w: multi-disk archives are not supported", ErrInvalidField)
		}

		layout.zip64 = true
		layout.entriesTotal = rec64.entriesTotal
		layout.cdSize = rec64.cdSize
		layout.cdOffset = rec64.cdOffset
		cdEnd = eocd64Offset
	}

	if layout.cdSize > cdEnd {
		return archiveLayout{}, ErrTruncated
	}

	cdActual := cdEnd - layout.cdSize
	if layout.cdOffset > cdActual {
		return archiveLayout{}, fmt.Errorf("%w: central directory offset past its end record", ErrInvalidField)
	}

	layout.baseOffset = cdActual - layout.cdOffset
	layout.cdOffset = cdActual

	return layout, nil
}

// multiDiskOK16 accepts single-disk values and the ZIP64 sentinel.
func multiDiskOK16(v uint16) bool {
	return v == 0 || v == sentinel16
}

// multiDiskOK32 accepts single-disk values and the ZIP64 sentinel.
func multiDiskOK32(v uint32) bool {
	return v == 0 || v == sentinel32
}
