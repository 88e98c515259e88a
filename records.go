// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import "fmt"

// eocdRecord is the fixed part of the end of central directory record.
type eocdRecord struct {
	diskNumber      uint16
	cdStartDisk     uint16
	entriesThisDisk uint16
	entriesTotal    uint16
	cdSize          uint32
	cdOffset        uint32
	commentLen      uint16
}

// parseEOCD decodes the 22-byte fixed EOCD record. The signature must have
// been validated by the caller.
func parseEOCD(b []byte) eocdRecord {
	c := newCursor(b)
	c.skip(4)

	return eocdRecord{
		diskNumber:      c.u16(),
		cdStartDisk:     c.u16(),
		entriesThisDisk: c.u16(),
		entriesTotal:    c.u16(),
		cdSize:          c.u32(),
		cdOffset:        c.u32(),
		commentLen:      c.u16(),
	}
}

// needsZip64 reports whether any EOCD field carries a ZIP64 sentinel.
func (r *eocdRecord) needsZip64() bool {
	return r.entriesThisDisk == sentinel16 ||
		r.entriesTotal == sentinel16 ||
		r.cdSize == sentinel32 ||
		r.cdOffset == sentinel32 ||
		r.diskNumber == sentinel16 ||
		r.cdStartDisk == sentinel16
}

// eocd64Record is the fixed part of the ZIP64 end of central directory record.
type eocd64Record struct {
	recordSize      uint64
	versionMadeBy   uint16
	versionNeeded   uint16
	diskNumber      uint32
	cdStartDisk     uint32
	entriesThisDisk uint64
	entriesTotal    uint64
	cdSize          uint64
	cdOffset        uint64
}

// parseEOCD64 decodes the 56-byte fixed EOCD64 record, validating its signature.
func parseEOCD64(b []byte) (eocd64Record, error) {
	if len(b) < eocd64Len {
		return eocd64Record{}, ErrTruncated
	}

	c := newCursor(b)
	if c.u32() != sigEOCD64 {
		return eocd64Record{}, fmt.Errorf("%w: want ZIP64 end of central directory", ErrInvalidSignature)
	}

	return eocd64Record{
		recordSize:      c.u64(),
		versionMadeBy:   c.u16(),
		versionNeeded:   c.u16(),
		diskNumber:      c.u32(),
		cdStartDisk:     c.u32(),
		entriesThisDisk: c.u64(),
		entriesTotal:    c.u64(),
		cdSize:          c.u64(),
		cdOffset:        c.u64(),
	}, nil
}

// eocd64Locator is the ZIP64 end of central directory locator record.
type eocd64Locator struct {
	eocd64Disk   uint32
	eocd64Offset uint64
	totalDisks   uint32
}

// parseEOCD64Locator decodes the 20-byte locator record, validating its signature.
func parseEOCD64Locator(b []byte) (eocd64Locator, error) {
	if len(b) < eocd64LocatorLen {
		return eocd64Locator{}, ErrTruncated
	}

	c := newCursor(b)
	if c.u32() != sigEOCD64Locator {
		return eocd64Locator{}, fmt.Errorf("%w: want ZIP64 end of central directory locator", ErrInvalidSignature)
	}

	return eocd64Locator{
		eocd64Disk:   c.u32(),
		eocd64Offset: c.u64(),
		totalDisks:   c.u32(),
	}, nil
}

// centralHeader is the fixed part of a central directory record with raw
// 32-bit and 16-bit fields before ZIP64 promotion.
type centralHeader struct {
	versionMadeBy     uint16
	versionNeeded     uint16
	flags             uint16
	method            uint16
	dosTime           uint16
	dosDate           uint16
	crc32             uint32
	compressedSize    uint32
	uncompressedSize  uint32
	nameLen           uint16
	extraLen          uint16
	commentLen        uint16
	diskStart         uint16
	internalAttrs     uint16
	externalAttrs     uint32
	localHeaderOffset uint32
}

// parseCentralHeader decodes the 46-byte fixed central directory record,
// validating its signature.
func parseCentralHeader(b []byte) (centralHeader, error) {
	if len(b) < centralHeaderLen {
		return centralHeader{}, ErrTruncated
	}

	c := newCursor(b)
	if c.u32() != sigCentralHeader {
		return centralHeader{}, fmt.Errorf("%w: want central directory record", ErrInvalidSignature)
	}

	return centralHeader{
		versionMadeBy:     c.u16(),
		versionNeeded:     c.u16(),
		flags:             c.u16(),
		method:            c.u16(),
		dosTime:           c.u16(),
		dosDate:           c.u16(),
		crc32:             c.u32(),
		compressedSize:    c.u32(),
		uncompressedSize:  c.u32(),
		nameLen:           c.u16(),
		extraLen:          c.u16(),
		commentLen:        c.u16(),
		diskStart:         c.u16(),
		internalAttrs:     c.u16(),
		externalAttrs:     c.u32(),
		localHeaderOffset: c.u32(),
	}, nil
}

// variableLen returns the total trailing name, extra and comment length.
func (h *centralHeader) variableLen() int {
	return int(h.nameLen) + int(h.extraLen) + int(h.commentLen)
}

// localHeader is the fixed part of a local file header.
type localHeader struct {
	versionNeeded    uint16
	flags            uint16
	method           uint16
	dosTime          uint16
	dosDate          uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	nameLen          uint16
	extraLen         uint16
}

// parseLocalHeader decodes the 30-byte fixed local file header, validating
// its signature.
func parseLocalHeader(b []byte) (localHeader, error) {
	if len(b) < localHeaderLen {
		return localHeader{}, ErrTruncated
	}

	c := newCursor(b)
	if c.u32() != sigLocalHeader {
		return localHeader{}, fmt.Errorf("%w: want local file header", ErrInvalidSignature)
	}

	return localHeader{
		versionNeeded:    c.u16(),
		flags:            c.u16(),
		method:           c.u16(),
		dosTime:          c.u16(),
		dosDate:          c.u16(),
		crc32:            c.u32(),
		compressedSize:   c.u32(),
		uncompressedSize: c.u32(),
		nameLen:          c.u16(),
		extraLen:         c.u16(),
	}, nil
}

// entryFromCentral builds a promoted entry view from a fixed header and its
// variable region. Borrowed fields alias variable.
func entryFromCentral(h centralHeader, variable []byte) (Entry, error) {
	c := newCursor(variable)

	name, ok := c.take(int(h.nameLen))
	if !ok {
		return Entry{}, ErrTruncated
	}

	extra, ok := c.take(int(h.extraLen))
	if !ok {
		return Entry{}, ErrTruncated
	}

	comment, ok := c.take(int(h.commentLen))
	if !ok {
		return Entry{}, ErrTruncated
	}

	entry := Entry{
		Name:              FilePath(name),
		Extra:             extra,
		Comment:           comment,
		CompressedSize:    uint64(h.compressedSize),
		UncompressedSize:  uint64(h.uncompressedSize),
		LocalHeaderOffset: uint64(h.localHeaderOffset),
		CRC32:             h.crc32,
		ExternalAttrs:     h.externalAttrs,
		DiskStart:         uint32(h.diskStart),
		Flags:             h.flags,
		Method:            CompressionMethod(h.method),
		VersionMadeBy:     h.versionMadeBy,
		VersionNeeded:     h.versionNeeded,
		DosTime:           h.dosTime,
		DosDate:           h.dosDate,
		InternalAttrs:     h.internalAttrs,
	}

	if err := promoteZip64(&entry, h); err != nil {
		return Entry{}, err
	}

	return entry, nil
}
