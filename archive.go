// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/rawzip

package rawzip

import (
	"fmt"
	"io"
)

// Archive is a parsed ZIP archive over an in-memory byte slice. Entry views
// produced by its iterator borrow directly from the slice and stay valid as
// long as the slice does.
type Archive struct {
	data   []byte
	layout archiveLayout
}

// Parse locates the end of central directory in data and resolves the
// archive geometry. File data is not touched and the central directory is
// not walked; use Entries for that.
//
// A trailing false EOCD signature surfaces as a FalseEOCDError; callers can
// retry with data truncated to the reported offset.
func Parse(data []byte) (*Archive, error) {
	if data == nil {
		return nil, ErrNilSource
	}

	end := uint64(len(data))
	start := tailWindowStart(end)

	loc, err := locateEOCD(data[start:end], start)
	if err != nil {
		return nil, err
	}

	layout, err := resolveLayout(loc, end, func(off, n uint64) ([]byte, error) {
		return boundedView(data, off, n)
	})
	if err != nil {
		return nil, err
	}

	return &Archive{data: data, layout: layout}, nil
}

// Comment returns the archive comment as a borrowed slice.
func (a *Archive) Comment() []byte {
	return a.data[a.layout.commentOffset : a.layout.commentOffset+uint64(a.layout.commentLen)]
}

// EOCDOffset returns the absolute offset of the EOCD signature.
func (a *Archive) EOCDOffset() uint64 {
	return a.layout.eocdOffset
}

// EntriesTotal returns the declared central directory entry count. The
// iterator terminates at the EOCD signature rather than this count;
// archives whose count disagrees with the records present are accepted
// as-is.
func (a *Archive) EntriesTotal() uint64 {
	return a.layout.entriesTotal
}

// Zip64 reports whether the archive carries ZIP64 end records.
func (a *Archive) Zip64() bool {
	return a.layout.zip64
}

// Entries returns a cursor over the central directory. The cursor is
// single-pass; obtain a fresh one to iterate again.
func (a *Archive) Entries() *Entries {
	return &Entries{archive: a, offset: a.layout.cdOffset}
}

// Entries iterates central directory records of a slice archive.
type Entries struct {
	archive *Archive
	err     error
	offset  uint64
	done    bool
}

// Next parses the next central directory record. It returns io.EOF after
// the final record, recognized by the terminating signature. Returned entry
// views borrow from the archive slice.
func (it *Entries) Next() (Entry, error) {
	if it.err != nil {
		return Entry{}, it.err
	}

	if it.done {
		return Entry{}, io.EOF
	}

	head, err := boundedView(it.archive.data, it.offset, 4)
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	switch sig := newCursor(head); sig.u32() {
	case sigCentralHeader:
	case sigEOCD, sigEOCD64:
		it.done = true
		return Entry{}, io.EOF
	default:
		it.err = fmt.Errorf("%w: in central directory", ErrInvalidSignature)
		return Entry{}, it.err
	}

	fixed, err := boundedView(it.archive.data, it.offset, centralHeaderLen)
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	h, err := parseCentralHeader(fixed)
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	variable, err := boundedView(it.archive.data, it.offset+centralHeaderLen, uint64(h.variableLen()))
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	entry, err := entryFromCentral(h, variable)
	if err != nil {
		it.err = err
		return Entry{}, err
	}

	entry.LocalHeaderOffset += it.archive.layout.baseOffset
	it.offset += centralHeaderLen + uint64(h.variableLen())

	return entry, nil
}

// DataRange resolves the compressed data range of an entry by reading its
// local file header. Sizes and CRC come from the central directory record,
// which stays authoritative for streaming-written archives whose local
// headers carry zero placeholders.
func (a *Archive) DataRange(entry *Entry) (Range, error) {
	return resolveDataRange(entry, func(off, n uint64) ([]byte, error) {
		return boundedView(a.data, off, n)
	}, uint64(len(a.data)))
}

// Data returns the borrowed source bytes of a compressed data range.
func (a *Archive) Data(r Range) ([]byte, error) {
	return boundedView(a.data, r.Start, r.Len())
}

// resolveDataRange reads the local header at the entry offset and derives
// the half-open compressed byte range following it.
func resolveDataRange(entry *Entry, readAt func(off, n uint64) ([]byte, error), srcLen uint64) (Range, error) {
	fixed, err := readAt(entry.LocalHeaderOffset, localHeaderLen)
	if err != nil {
		return Range{}, err
	}

	h, err := parseLocalHeader(fixed)
	if err != nil {
		return Range{}, err
	}

	start := entry.LocalHeaderOffset + localHeaderLen + uint64(h.nameLen) + uint64(h.extraLen)
	end := start + entry.CompressedSize
	if end < start || end > srcLen {
		return Range{}, ErrTruncated
	}

	return Range{Start: start, End: end}, nil
}
